package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/phillip/buildtogether-go/apperr"
	"github.com/phillip/buildtogether-go/auth"
	"github.com/phillip/buildtogether-go/metrics"
	"github.com/phillip/buildtogether-go/models"
	"github.com/phillip/buildtogether-go/store"
	"go.uber.org/zap"
)

// CreatePropertyInput is the proposal form as posted by clients.
type CreatePropertyInput struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Location        string   `json:"location"`
	ExpectedMembers Number   `json:"expected_members"`
	PerMemberCost   Number   `json:"per_member_cost"`
	Images          []string `json:"images"`
}

type PropertyService struct {
	props PropertyStore
	now   func() time.Time
}

func NewPropertyService(props PropertyStore) *PropertyService {
	return &PropertyService{props: props, now: time.Now}
}

type validProposal struct {
	title, description, location string
	images                       []string
	expectedMembers              int
	perMemberCost                float64
	targetAmount                 float64
}

// maxTargetAmount bounds targets to where float64 keeps whole-unit precision.
const maxTargetAmount = 1 << 53

func validateProposal(in CreatePropertyInput) (validProposal, error) {
	v := validProposal{
		title:       strings.TrimSpace(in.Title),
		description: strings.TrimSpace(in.Description),
		location:    strings.TrimSpace(in.Location),
	}
	if v.title == "" || v.description == "" || v.location == "" ||
		!in.ExpectedMembers.Present() || !in.PerMemberCost.Present() || in.Images == nil {
		return v, apperr.Validation("All fields are required.")
	}

	if len(in.Images) == 0 {
		return v, apperr.Validation("Images must be a non-empty array of strings.")
	}
	for _, img := range in.Images {
		img = strings.TrimSpace(img)
		if img == "" {
			return v, apperr.Validation("Images must be a non-empty array of strings.")
		}
		v.images = append(v.images, img)
	}

	n, err := strconv.ParseFloat(in.ExpectedMembers.String(), 64)
	if err != nil || n != math.Trunc(n) || n <= 1 || n > math.MaxInt32 {
		return v, apperr.Validation("Expected members must be a number greater than 1.")
	}
	v.expectedMembers = int(n)

	cost, err := strconv.ParseFloat(in.PerMemberCost.String(), 64)
	if err != nil || math.IsNaN(cost) || math.IsInf(cost, 0) || cost <= 0 {
		return v, apperr.Validation("Per member cost must be a positive number.")
	}
	v.perMemberCost = cost

	v.targetAmount = float64(v.expectedMembers) * v.perMemberCost
	if math.IsInf(v.targetAmount, 0) || v.targetAmount > maxTargetAmount {
		return v, apperr.Validation("Target amount is too large.")
	}

	return v, nil
}

// Create validates a proposal and stores it with the creator as sole admin.
// Nothing is written when validation fails.
func (s *PropertyService) Create(ctx context.Context, creator auth.Identity, in CreatePropertyInput) (models.Property, error) {
	if creator.ID == "" || creator.Name == "" {
		return models.Property{}, apperr.Unauthorized("You must be logged in to create a project.")
	}
	v, err := validateProposal(in)
	if err != nil {
		return models.Property{}, err
	}

	owner := models.ProjectUser{ID: creator.ID, Name: creator.Name}
	p := models.Property{
		Title:           v.title,
		Description:     v.description,
		Location:        v.location,
		Images:          v.images,
		CreatedAt:       s.now().UTC(),
		CreatedBy:       owner,
		Admins:          []models.ProjectUser{owner},
		Members:         []models.Member{},
		ExpectedMembers: v.expectedMembers,
		PerMemberCost:   v.perMemberCost,
		TargetAmount:    v.targetAmount,
		Status:          models.StatusFunding,
		ChatMessages:    []models.ChatMessage{},
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.props.Insert(ctx, &p); err != nil {
		zap.L().Error("insert property", zap.Error(err))
		return models.Property{}, apperr.Internal("An error occurred during project creation.", err)
	}

	metrics.ProjectsCreated.Inc()
	zap.L().Info("project created",
		zap.String("project_id", p.ID.Hex()),
		zap.String("created_by", creator.ID),
		zap.Float64("target_amount", p.TargetAmount))
	return p, nil
}

func (s *PropertyService) List(ctx context.Context, titleQuery string) ([]models.Property, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	props, err := s.props.List(ctx, strings.TrimSpace(titleQuery))
	if err != nil {
		zap.L().Error("list properties", zap.Error(err))
		return nil, apperr.Internal("Failed to fetch properties.", err)
	}
	return props, nil
}

// ListForUser returns the projects the caller administers or has joined.
func (s *PropertyService) ListForUser(ctx context.Context, user auth.Identity) ([]models.Property, error) {
	if user.ID == "" {
		return nil, apperr.Unauthorized("Unauthorized")
	}
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	props, err := s.props.ListForUser(ctx, user.ID)
	if err != nil {
		zap.L().Error("list user projects", zap.String("user_id", user.ID), zap.Error(err))
		return nil, apperr.Internal("Internal Server Error", err)
	}
	return props, nil
}

func (s *PropertyService) Get(ctx context.Context, rawID string) (models.Property, error) {
	id, err := ParsePropertyID(rawID)
	if err != nil {
		return models.Property{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	p, err := s.props.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Property{}, apperr.NotFound("Project not found.")
	}
	if err != nil {
		zap.L().Error("find property", zap.String("project_id", rawID), zap.Error(err))
		return models.Property{}, apperr.Internal("Failed to fetch project.", err)
	}
	return p, nil
}
