package controllers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phillip/buildtogether-go/auth"
	"github.com/phillip/buildtogether-go/config"
	"github.com/phillip/buildtogether-go/controllers"
	"github.com/phillip/buildtogether-go/middleware"
	"github.com/phillip/buildtogether-go/models"
	"github.com/phillip/buildtogether-go/pubsub"
	"github.com/phillip/buildtogether-go/routes"
	"github.com/phillip/buildtogether-go/services"
	"github.com/phillip/buildtogether-go/testutil"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	app    *controllers.App
	props  *testutil.MemProperties
	users  *testutil.MemUsers
	pub    *testutil.RecordingPublisher
	tokens *auth.Issuer
	router *gin.Engine
}

type harnessOpts struct {
	publisher  services.Publisher
	subscriber controllers.Subscriber
	uploader   controllers.ImageUploader
	health     []controllers.HealthCheck
	seed       []models.Property
	chatLimit  *middleware.Limiter
}

func newHarness(t *testing.T, opts ...harnessOpts) *harness {
	t.Helper()
	var o harnessOpts
	if len(opts) > 0 {
		o = opts[0]
	}

	cfg := &config.Config{
		AppEnv:          "test",
		ClientURL:       "http://localhost:3000",
		TokenTTL:        time.Hour,
		ChatDedupWindow: 2 * time.Second,
		PusherKey:       "app-key",
		PusherSecret:    "app-secret",
	}

	h := &harness{
		props:  testutil.NewMemProperties(o.seed...),
		users:  testutil.NewMemUsers(),
		pub:    &testutil.RecordingPublisher{},
		tokens: auth.NewIssuer("test-secret", time.Hour),
	}
	publisher := o.publisher
	if publisher == nil {
		publisher = h.pub
	}

	h.app = &controllers.App{
		Config:     cfg,
		Accounts:   services.NewAccountService(h.users, h.tokens, nil),
		Properties: services.NewPropertyService(h.props),
		Membership: services.NewMembershipService(h.props),
		Chat:       services.NewChatRelay(h.props, publisher),
		Channels:   pubsub.NewChannelAuthorizer(cfg.PusherKey, cfg.PusherSecret),
		Subscriber: o.subscriber,
		Uploader:   o.uploader,
		Health:     o.health,
		ChatLimit:  o.chatLimit,
	}

	h.router = gin.New()
	routes.SetupRoutes(h.router, h.app, h.tokens, routes.Limits{})
	return h
}

func (h *harness) token(t *testing.T, id auth.Identity) string {
	t.Helper()
	tok, _, err := h.tokens.Issue(id)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = bytes.NewBufferString(b)
		default:
			raw, _ := json.Marshal(b)
			r = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}
