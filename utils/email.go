package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// email request payload for ZeptoMail API
type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type toRecipient struct {
	Email emailWithName `json:"email_address"`
}

type emailWithName struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Mailer sends HTML mail through the ZeptoMail HTTP API.
type Mailer struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

// NewMailer returns nil when the API url, key or sender is missing.
func NewMailer(apiURL, apiKey, from string) *Mailer {
	if apiURL == "" || apiKey == "" || from == "" {
		return nil
	}
	return &Mailer{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *Mailer) SendEmail(ctx context.Context, to, toName, subject, body string) error {
	payload := emailRequest{
		From:     emailAddress{Address: m.from},
		To:       []toRecipient{{Email: emailWithName{Address: to, Name: toName}}},
		Subject:  subject,
		HtmlBody: body,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zeptomail API error: %s", resp.Status)
	}

	zap.L().Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// SendWelcome greets a newly registered user.
func (m *Mailer) SendWelcome(ctx context.Context, email, name string) error {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Welcome to BuildTogether. Browse open projects and join the ones you want to back.</p>",
		html.EscapeString(name),
	)
	return m.SendEmail(ctx, email, name, "Welcome to BuildTogether", body)
}
