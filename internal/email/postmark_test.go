package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, status int, received *postmarkEmail, gotToken *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotToken != nil {
			*gotToken = r.Header.Get("X-Postmark-Server-Token")
		}
		if received != nil {
			if err := json.NewDecoder(r.Body).Decode(received); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSendInvitation(t *testing.T) {
	var received postmarkEmail
	var gotToken string
	server := newTestServer(t, http.StatusOK, &received, &gotToken)

	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL), WithHTTPClient(server.Client()))
	link := "https://prepper.test/invite/abc123"
	if err := client.SendInvitation(context.Background(), "bob@example.com", "Kitchen", "alice", link); err != nil {
		t.Fatalf("send invitation: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "bob@example.com" {
		t.Errorf("To = %q, want %q", received.To, "bob@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if received.Subject != "alice invited you to Kitchen on Prepper" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if !strings.Contains(received.TextBody, link) || !strings.Contains(received.HtmlBody, link) {
		t.Error("bodies should contain the invitation link")
	}
}

func TestSendPasswordReset(t *testing.T) {
	var received postmarkEmail
	server := newTestServer(t, http.StatusOK, &received, nil)

	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL))
	if err := client.SendPasswordReset(context.Background(), "alice@example.com", "123456"); err != nil {
		t.Fatalf("send reset: %v", err)
	}
	if !strings.Contains(received.TextBody, "123456") {
		t.Errorf("TextBody = %q, want the code", received.TextBody)
	}
}

func TestSendNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com")
	if err := client.SendPasswordReset(context.Background(), "alice@example.com", "123456"); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

func TestSendAPIError(t *testing.T) {
	server := newTestServer(t, http.StatusUnprocessableEntity, nil, nil)
	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL))
	if err := client.SendInvitation(context.Background(), "bob@example.com", "Kitchen", "alice", "x"); err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestConfigured(t *testing.T) {
	if !NewClient("token", "from@test.com").Configured() {
		t.Error("expected Configured() = true")
	}
	if NewClient("", "from@test.com").Configured() {
		t.Error("expected Configured() = false")
	}
}
