package controllers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phillip/buildtogether-go/models"
	"github.com/phillip/buildtogether-go/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proposal() map[string]any {
	return map[string]any{
		"title":            "Riverside duplex",
		"description":      "Two units by the river",
		"location":         "Nairobi",
		"expected_members": "4",
		"per_member_cost":  12500.5,
		"images":           []string{"https://res.cloudinary.com/demo/image/upload/v1/properties/a.jpg"},
	}
}

func TestCreateProperty(t *testing.T) {
	h := newHarness(t)
	creator := testutil.NewIdentity()

	w := h.do(http.MethodPost, "/properties", proposal(), h.token(t, creator))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body struct {
		Message   string `json:"message"`
		ProjectID string `json:"projectId"`
	}
	decode(t, w, &body)
	assert.Equal(t, "Project created successfully.", body.Message)

	w = h.do(http.MethodGet, "/properties/"+body.ProjectID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var p models.Property
	decode(t, w, &p)
	assert.Equal(t, 50002.0, p.TargetAmount)
	assert.Equal(t, 4, p.ExpectedMembers)
	assert.Equal(t, models.StatusFunding, p.Status)
	assert.Equal(t, creator.ID, p.CreatedBy.ID)
	require.Len(t, p.Admins, 1)
	assert.Equal(t, creator.ID, p.Admins[0].ID)
	assert.Empty(t, p.Members)
}

func TestCreateProperty_Rejects(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, testutil.NewIdentity())

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/properties", proposal(), "").Code)

	tests := []struct {
		name  string
		edit  func(m map[string]any)
		error string
	}{
		{"missing title", func(m map[string]any) { delete(m, "title") }, "All fields are required."},
		{"no images", func(m map[string]any) { m["images"] = []string{} }, "Images must be a non-empty array of strings."},
		{"one member", func(m map[string]any) { m["expected_members"] = 1 }, "Expected members must be a number greater than 1."},
		{"free", func(m map[string]any) { m["per_member_cost"] = "0" }, "Per member cost must be a positive number."},
		{"overflowing target", func(m map[string]any) {
			m["expected_members"] = 100
			m["per_member_cost"] = 1e307
		}, "Target amount is too large."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := proposal()
			tc.edit(in)
			w := h.do(http.MethodPost, "/properties", in, tok)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.error, errorOf(t, w))
		})
	}
	assert.Equal(t, 0, h.props.Count())

	w := h.do(http.MethodGet, "/properties", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListProperties(t *testing.T) {
	h := newHarness(t)
	owner := testutil.NewIdentity()

	w := h.do(http.MethodGet, "/properties", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	older := testutil.NewProperty(owner)
	older.Title = "Old Farmhouse"
	older.CreatedAt = time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond)
	newer := testutil.NewProperty(owner)
	newer.Title = "New Loft"
	h = newHarness(t, harnessOpts{seed: []models.Property{older, newer}})

	w = h.do(http.MethodGet, "/properties", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Property
	decode(t, w, &list)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.NotEmpty(t, w.Header().Get("Last-Modified"))

	req := httptest.NewRequest(http.MethodGet, "/properties", nil)
	req.Header.Set("If-None-Match", etag)
	nm := httptest.NewRecorder()
	h.router.ServeHTTP(nm, req)
	assert.Equal(t, http.StatusNotModified, nm.Code)

	w = h.do(http.MethodGet, "/properties?q=farm", nil, "")
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, older.ID, list[0].ID)
}

func TestGetProperty_Errors(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/properties/not-an-id", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/properties/64b7f0c2a1b2c3d4e5f60718", nil, "").Code)
}

func TestJoinProperty(t *testing.T) {
	owner := testutil.NewIdentity()
	p := testutil.NewProperty(owner)
	h := newHarness(t, harnessOpts{seed: []models.Property{p}})

	joiner := testutil.NewIdentity()
	tok := h.token(t, joiner)
	path := "/properties/" + p.ID.Hex() + "/join"

	w := h.do(http.MethodPost, path, nil, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodPost, path, nil, tok)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "You are already part of this project.", errorOf(t, w))

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, path, nil, h.token(t, owner)).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/properties/xyz/join", nil, tok).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/properties/64b7f0c2a1b2c3d4e5f60718/join", nil, tok).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, path, nil, "").Code)

	w = h.do(http.MethodGet, "/my-projects", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.Property
	decode(t, w, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, p.ID, mine[0].ID)
	require.Len(t, mine[0].Members, 1)
	assert.Equal(t, joiner.ID, mine[0].Members[0].ID)

	w = h.do(http.MethodGet, "/my-projects", nil, h.token(t, testutil.NewIdentity()))
	assert.JSONEq(t, `[]`, w.Body.String())
}
