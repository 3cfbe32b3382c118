package controllers_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/phillip/buildtogether-go/middleware"
	"github.com/phillip/buildtogether-go/models"
	"github.com/phillip/buildtogether-go/pubsub"
	"github.com/phillip/buildtogether-go/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostChat(t *testing.T) {
	p := testutil.NewProperty(testutil.NewIdentity())
	h := newHarness(t, harnessOpts{seed: []models.Property{p}})
	user := testutil.NewIdentity()
	channel := pubsub.PropertyChannel(p.ID.Hex())

	w := h.do(http.MethodPost, "/chat", map[string]string{"channel": channel, "message": "<i>hello</i>"}, h.token(t, user))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Message string             `json:"message"`
		Chat    models.ChatMessage `json:"chat"`
	}
	decode(t, w, &body)
	assert.Equal(t, "Message sent", body.Message)
	assert.Equal(t, user.Name, body.Chat.User)
	assert.Equal(t, "hello", body.Chat.Message)

	events := h.pub.All()
	require.Len(t, events, 1)
	assert.Equal(t, channel, events[0].Channel)
	assert.Equal(t, pubsub.ChatEvent, events[0].Event.Name)

	w = h.do(http.MethodGet, "/properties/"+p.ID.Hex()+"/messages", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.ChatMessage
	decode(t, w, &msgs)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Message)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/properties/"+p.ID.Hex()+"/messages?limit=-2", nil, "").Code)
}

func TestPostChat_Rejects(t *testing.T) {
	p := testutil.NewProperty(testutil.NewIdentity())
	h := newHarness(t, harnessOpts{seed: []models.Property{p}})
	tok := h.token(t, testutil.NewIdentity())
	channel := pubsub.PropertyChannel(p.ID.Hex())

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/chat", map[string]string{"channel": channel, "message": "hi"}, "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/chat", map[string]string{"channel": channel, "message": " "}, tok).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/chat", map[string]string{"channel": "general", "message": "hi"}, tok).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/chat", map[string]string{
		"channel": pubsub.PropertyChannel("64b7f0c2a1b2c3d4e5f60718"), "message": "hi",
	}, tok).Code)
	assert.Empty(t, h.pub.All())
}

func TestPostChat_PublishFailure(t *testing.T) {
	p := testutil.NewProperty(testutil.NewIdentity())
	pub := &testutil.RecordingPublisher{Err: errors.New("broker down")}
	h := newHarness(t, harnessOpts{seed: []models.Property{p}, publisher: pub})

	w := h.do(http.MethodPost, "/chat", map[string]string{
		"channel": pubsub.PropertyChannel(p.ID.Hex()), "message": "hi",
	}, h.token(t, testutil.NewIdentity()))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Message saved but not delivered", errorOf(t, w))

	stored, err := h.props.FindByID(t.Context(), p.ID)
	require.NoError(t, err)
	assert.Len(t, stored.ChatMessages, 1)
}

func postForm(h *harness, path string, form url.Values, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestAuthorizeChannel(t *testing.T) {
	p := testutil.NewProperty(testutil.NewIdentity())
	h := newHarness(t, harnessOpts{seed: []models.Property{p}})
	user := testutil.NewIdentity()
	tok := h.token(t, user)
	channel := pubsub.PropertyChannel(p.ID.Hex())

	w := postForm(h, "/pusher/auth", url.Values{"socket_id": {"1234.5678"}, "channel_name": {channel}}, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got pubsub.ChannelAuth
	decode(t, w, &got)

	var presence pubsub.PresenceData
	require.NoError(t, json.Unmarshal([]byte(got.ChannelData), &presence))
	assert.Equal(t, user.ID, presence.UserID)
	assert.Equal(t, user.Name, presence.UserInfo.Name)
	assert.Equal(t, user.Email, presence.UserInfo.Email)

	mac := hmac.New(sha256.New, []byte("app-secret"))
	mac.Write([]byte("1234.5678:" + channel + ":" + got.ChannelData))
	assert.Equal(t, "app-key:"+hex.EncodeToString(mac.Sum(nil)), got.Auth)

	assert.Equal(t, http.StatusBadRequest, postForm(h, "/pusher/auth", url.Values{"channel_name": {channel}}, tok).Code)
	assert.Equal(t, http.StatusNotFound, postForm(h, "/pusher/auth", url.Values{
		"socket_id": {"1.2"}, "channel_name": {pubsub.PropertyChannel("64b7f0c2a1b2c3d4e5f60718")},
	}, tok).Code)
	assert.Equal(t, http.StatusUnauthorized, postForm(h, "/pusher/auth", url.Values{"socket_id": {"1.2"}, "channel_name": {channel}}, "").Code)
}

func TestAuthorizeChannel_SigningDisabled(t *testing.T) {
	p := testutil.NewProperty(testutil.NewIdentity())
	h := newHarness(t, harnessOpts{seed: []models.Property{p}})
	h.app.Channels = pubsub.NewChannelAuthorizer("", "")

	w := postForm(h, "/pusher/auth", url.Values{
		"socket_id": {"1.2"}, "channel_name": {pubsub.PropertyChannel(p.ID.Hex())},
	}, h.token(t, testutil.NewIdentity()))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error authorizing channel", errorOf(t, w))
}

func TestChatSocket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	broker := pubsub.NewBroker(rdb)

	p := testutil.NewProperty(testutil.NewIdentity())
	h := newHarness(t, harnessOpts{seed: []models.Property{p}, publisher: broker, subscriber: broker})
	srv := httptest.NewServer(h.router)
	t.Cleanup(srv.Close)

	me := testutil.NewIdentity()
	other := testutil.NewIdentity()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/" + p.ID.Hex() + "/ws?token=" + h.token(t, me)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	readEvent := func() pubsub.Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var ev pubsub.Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	// my own message is stored and broadcast, but not echoed to me
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "from me"}))
	require.Eventually(t, func() bool {
		stored, _ := h.props.FindByID(t.Context(), p.ID)
		return len(stored.ChatMessages) == 1
	}, 2*time.Second, 20*time.Millisecond)

	w := h.do(http.MethodPost, "/chat", map[string]string{
		"channel": pubsub.PropertyChannel(p.ID.Hex()), "message": "from other",
	}, h.token(t, other))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ev := readEvent()
	assert.Equal(t, pubsub.ChatEvent, ev.Name)
	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(ev.Data, &msg))
	assert.Equal(t, other.Name, msg.User)
	assert.Equal(t, "from other", msg.Message)

	// invalid frames get an error reply
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "   "}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var reply struct {
		Error string `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "Message cannot be empty.", reply.Error)
}

func TestChatSocket_SharesChatRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	p := testutil.NewProperty(testutil.NewIdentity())
	h := newHarness(t, harnessOpts{
		seed:       []models.Property{p},
		subscriber: pubsub.NewBroker(rdb),
		chatLimit:  middleware.NewLimiter(rdb, 2, time.Minute, "chat"),
	})
	srv := httptest.NewServer(h.router)
	t.Cleanup(srv.Close)

	me := testutil.NewIdentity()
	tok := h.token(t, me)
	channel := pubsub.PropertyChannel(p.ID.Hex())

	w := h.do(http.MethodPost, "/chat", map[string]string{"channel": channel, "message": "over http"}, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/" + p.ID.Hex() + "/ws?token=" + tok
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "one"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "two"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var reply struct {
		Error string `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "Too many requests, slow down.", reply.Error)

	stored, err := h.props.FindByID(t.Context(), p.ID)
	require.NoError(t, err)
	require.Len(t, stored.ChatMessages, 2)
	assert.Equal(t, "over http", stored.ChatMessages[0].Message)
	assert.Equal(t, "one", stored.ChatMessages[1].Message)

	w = h.do(http.MethodPost, "/chat", map[string]string{"channel": channel, "message": "again"}, tok)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Len(t, h.pub.All(), 2)
}

func TestChatSocket_Rejects(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	t.Cleanup(srv.Close)
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(base+"/chat/64b7f0c2a1b2c3d4e5f60718/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"/chat/64b7f0c2a1b2c3d4e5f60718/ws?token="+h.token(t, testutil.NewIdentity()), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
