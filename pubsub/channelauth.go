package pubsub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

var ErrSigningDisabled = errors.New("channel signing is not configured")

// PresenceData identifies the subscriber on a presence channel.
type PresenceData struct {
	UserID   string       `json:"user_id"`
	UserInfo PresenceInfo `json:"user_info"`
}

type PresenceInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ChannelAuth is the signed handshake reply a client presents when
// subscribing to a private or presence channel.
type ChannelAuth struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

// ChannelAuthorizer signs subscriptions the way Pusher-compatible clients
// expect: "<key>:<hex hmac-sha256>".
type ChannelAuthorizer struct {
	key    string
	secret []byte
}

func NewChannelAuthorizer(key, secret string) *ChannelAuthorizer {
	return &ChannelAuthorizer{key: key, secret: []byte(secret)}
}

// Authorize signs socketID's subscription to channel. Presence channels
// embed presence as channel_data and sign over it too.
func (a *ChannelAuthorizer) Authorize(socketID, channel string, presence PresenceData) (ChannelAuth, error) {
	if a.key == "" || len(a.secret) == 0 {
		return ChannelAuth{}, ErrSigningDisabled
	}

	if !strings.HasPrefix(channel, "presence-") {
		return ChannelAuth{Auth: a.sign(socketID + ":" + channel)}, nil
	}

	raw, err := json.Marshal(presence)
	if err != nil {
		return ChannelAuth{}, err
	}
	data := string(raw)
	return ChannelAuth{
		Auth:        a.sign(socketID + ":" + channel + ":" + data),
		ChannelData: data,
	}, nil
}

func (a *ChannelAuthorizer) sign(s string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(s))
	return a.key + ":" + hex.EncodeToString(mac.Sum(nil))
}
