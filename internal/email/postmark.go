// Package email sends transactional mail through Postmark.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL points the client at another endpoint, such as a test server.
func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      postmarkURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendInvitation mails an invitation link for groupName.
func (c *Client) SendInvitation(ctx context.Context, toEmail, groupName, inviterName, link string) error {
	subject := fmt.Sprintf("%s invited you to %s on Prepper", inviterName, groupName)
	textBody := fmt.Sprintf(
		"%s invited you to share the household inventory %q.\n\nOpen the link below to join:\n\n%s\n\nThis link expires in 48 hours.",
		inviterName, groupName, link,
	)
	htmlBody := fmt.Sprintf(
		`<p>%s invited you to share the household inventory <strong>%s</strong>.</p><p><a href="%s">Join %s</a></p><p>This link expires in 48 hours.</p>`,
		inviterName, groupName, link, groupName,
	)
	return c.send(ctx, postmarkEmail{To: toEmail, Subject: subject, TextBody: textBody, HtmlBody: htmlBody})
}

// SendPasswordReset mails a one-time password reset code.
func (c *Client) SendPasswordReset(ctx context.Context, toEmail, code string) error {
	textBody := fmt.Sprintf("Your Prepper password reset code is %s.\n\nIt expires in 15 minutes.", code)
	htmlBody := fmt.Sprintf(`<p>Your Prepper password reset code is <strong>%s</strong>.</p><p>It expires in 15 minutes.</p>`, code)
	return c.send(ctx, postmarkEmail{To: toEmail, Subject: "Reset your Prepper password", TextBody: textBody, HtmlBody: htmlBody})
}

func (c *Client) send(ctx context.Context, msg postmarkEmail) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}
	msg.From = c.fromEmail

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}
	return nil
}
