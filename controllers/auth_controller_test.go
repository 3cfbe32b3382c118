package controllers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phillip/buildtogether-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/register", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "pw123456",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body struct {
		Message string `json:"message"`
		UserID  string `json:"userId"`
	}
	decode(t, w, &body)
	assert.Equal(t, "User registered successfully.", body.Message)
	assert.Len(t, body.UserID, 24)

	w = h.do(http.MethodPost, "/register", map[string]string{
		"name": "Ada 2", "email": "ADA@example.com", "password": "other",
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User with this email already exists.", errorOf(t, w))

	w = h.do(http.MethodPost, "/register", map[string]string{"email": "x@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "All fields are required.", errorOf(t, w))

	w = h.do(http.MethodPost, "/register", map[string]string{
		"name": "Long", "email": "long@example.com", "password": strings.Repeat("p", 100),
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/register", "{not json", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginAndMe(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/register", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "pw123456",
	}, "").Code)

	w := h.do(http.MethodPost, "/auth/login", map[string]string{"email": "ada@example.com", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", errorOf(t, w))

	w = h.do(http.MethodPost, "/auth/login", map[string]string{"email": "ada@example.com", "password": "pw123456"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sess struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}
	decode(t, w, &sess)
	require.NotEmpty(t, sess.Token)
	assert.Equal(t, "Ada", sess.User.Name)

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == middleware.SessionCookie {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, sess.Token, cookie.Value)

	// the cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	h.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.JSONEq(t, `{"user":{"id":"`+sess.User.ID+`","name":"Ada","email":"ada@example.com"}}`, me.Body.String())

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/auth/me", nil, "").Code)

	out := h.do(http.MethodPost, "/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, out.Code)
	require.NotEmpty(t, out.Result().Cookies())
	assert.Equal(t, "", out.Result().Cookies()[0].Value)
}
