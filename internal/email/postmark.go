package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
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

// SendInvite emails a household invitation link.
func (c *Client) SendInvite(toEmail, token, householdName string) error {
	subject := fmt.Sprintf("You've been invited to %s on Farthing", householdName)
	link := fmt.Sprintf("%s/invite?token=%s", c.baseURL, token)
	textBody := fmt.Sprintf("You've been invited to join %s.\n\nAccept the invitation:\n\n%s\n\nThis link expires in 7 days.", householdName, link)
	htmlBody := fmt.Sprintf(
		`<p>You've been invited to join <strong>%s</strong>.</p><p><a href="%s">Accept the invitation</a></p><p>This link expires in 7 days.</p>`,
		householdName, link,
	)
	return c.send(toEmail, subject, htmlBody, textBody)
}

// SendWelcome emails a new account confirmation.
func (c *Client) SendWelcome(toEmail, name string) error {
	subject := "Welcome to Farthing"
	textBody := fmt.Sprintf("Hi %s,\n\nYour Farthing account is ready. Sign in to set up your household:\n\n%s", name, c.baseURL)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your Farthing account is ready. <a href="%s">Sign in</a> to set up your household.</p>`,
		name, c.baseURL,
	)
	return c.send(toEmail, subject, htmlBody, textBody)
}

func (c *Client) send(toEmail, subject, htmlBody, textBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.postmarkapp.com/email", bytes.NewReader(body))
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
