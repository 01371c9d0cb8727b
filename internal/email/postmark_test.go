package email

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func captureClient(status int, captured *http.Request, body *postmarkEmail) *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			*captured = *r
			if body != nil {
				json.NewDecoder(r.Body).Decode(body)
			}
			return &http.Response{
				StatusCode: status,
				Body:       io.NopCloser(strings.NewReader("{}")),
				Header:     make(http.Header),
			}, nil
		}),
	}
}

func TestSendInvite(t *testing.T) {
	var req http.Request
	var payload postmarkEmail
	c := NewClient("pm-token", "hello@farthing.family", "https://farthing.family",
		WithHTTPClient(captureClient(http.StatusOK, &req, &payload)))

	if err := c.SendInvite("new@example.com", "tok123", "The Paulsens"); err != nil {
		t.Fatalf("send invite: %v", err)
	}

	if req.URL.String() != "https://api.postmarkapp.com/email" {
		t.Errorf("url = %q", req.URL)
	}
	if got := req.Header.Get("X-Postmark-Server-Token"); got != "pm-token" {
		t.Errorf("token header = %q", got)
	}
	if payload.From != "hello@farthing.family" || payload.To != "new@example.com" {
		t.Errorf("addresses = %q -> %q", payload.From, payload.To)
	}
	if !strings.Contains(payload.Subject, "The Paulsens") {
		t.Errorf("subject = %q", payload.Subject)
	}
	if !strings.Contains(payload.TextBody, "https://farthing.family/invite?token=tok123") {
		t.Errorf("text body missing invite link: %q", payload.TextBody)
	}
	if !strings.Contains(payload.HtmlBody, "invite?token=tok123") {
		t.Errorf("html body missing invite link: %q", payload.HtmlBody)
	}
}

func TestSendWelcome(t *testing.T) {
	var req http.Request
	var payload postmarkEmail
	c := NewClient("pm-token", "hello@farthing.family", "https://farthing.family",
		WithHTTPClient(captureClient(http.StatusOK, &req, &payload)))

	if err := c.SendWelcome("pat@example.com", "Pat"); err != nil {
		t.Fatalf("send welcome: %v", err)
	}
	if !strings.Contains(payload.TextBody, "Pat") {
		t.Errorf("text body = %q", payload.TextBody)
	}
}

func TestSendAPIError(t *testing.T) {
	var req http.Request
	c := NewClient("pm-token", "hello@farthing.family", "https://farthing.family",
		WithHTTPClient(captureClient(http.StatusUnprocessableEntity, &req, nil)))

	if err := c.SendWelcome("pat@example.com", "Pat"); err == nil {
		t.Fatal("expected error for 422 response")
	}
}

func TestSendNotConfigured(t *testing.T) {
	c := NewClient("", "hello@farthing.family", "https://farthing.family")
	if c.Configured() {
		t.Fatal("client without token should not be configured")
	}
	if err := c.SendWelcome("pat@example.com", "Pat"); err == nil {
		t.Error("expected error when unconfigured")
	}
}
