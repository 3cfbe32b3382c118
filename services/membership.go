package services

import (
	"context"
	"errors"
	"time"

	"github.com/phillip/buildtogether-go/apperr"
	"github.com/phillip/buildtogether-go/auth"
	"github.com/phillip/buildtogether-go/metrics"
	"github.com/phillip/buildtogether-go/models"
	"github.com/phillip/buildtogether-go/store"
	"go.uber.org/zap"
)

type MembershipService struct {
	props PropertyStore
	now   func() time.Time
}

func NewMembershipService(props PropertyStore) *MembershipService {
	return &MembershipService{props: props, now: time.Now}
}

// Join adds the caller to the property's members. The membership check and
// the append happen in one conditional store update, so repeated or
// concurrent joins by the same user add at most one entry.
func (s *MembershipService) Join(ctx context.Context, user auth.Identity, rawID string) (models.Member, error) {
	if user.ID == "" {
		return models.Member{}, apperr.Unauthorized("You must be logged in to join.")
	}
	id, err := ParsePropertyID(rawID)
	if err != nil {
		return models.Member{}, err
	}

	m := models.Member{ID: user.ID, Name: user.Name, JoinedAt: s.now().UTC()}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	switch err := s.props.AddMember(ctx, id, m); {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return models.Member{}, apperr.NotFound("Project not found.")
	case errors.Is(err, store.ErrAlreadyMember):
		metrics.Joins.WithLabelValues("conflict").Inc()
		return models.Member{}, apperr.Conflict("You are already part of this project.")
	default:
		metrics.Joins.WithLabelValues("error").Inc()
		zap.L().Error("join project",
			zap.String("project_id", rawID),
			zap.String("user_id", user.ID),
			zap.Error(err))
		return models.Member{}, apperr.Internal("An error occurred while joining the project.", err)
	}

	metrics.Joins.WithLabelValues("joined").Inc()
	zap.L().Info("user joined project",
		zap.String("project_id", rawID),
		zap.String("user_id", user.ID))
	return m, nil
}
