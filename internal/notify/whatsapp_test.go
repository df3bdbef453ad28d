package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/murillocortez/klyver-engine/internal/config"
)

func newTestClient(url string) *GatewayClient {
	return NewGatewayClient(config.WhatsAppConfig{
		BaseURL:        url,
		APIKey:         "test-key",
		CountryPrefix:  "55",
		TimeoutSeconds: 5,
	})
}

func TestSend(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/messages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(sendResponse{Success: true})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.Send(context.Background(), "(11) 98765-4321", "Oi Maria")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Phone != "5511987654321" {
		t.Errorf("phone = %s, want normalized with country prefix", got.Phone)
	}
	if got.Message != "Oi Maria" {
		t.Errorf("message = %q", got.Message)
	}
}

func TestSendGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if err := client.Send(context.Background(), "11987654321", "msg"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sendResponse{Success: false, Error: "unknown recipient"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if err := client.Send(context.Background(), "11987654321", "msg"); err == nil {
		t.Fatal("expected error for rejected message")
	}
}

func TestSendInvalidPhone(t *testing.T) {
	client := newTestClient("http://unused")
	if err := client.Send(context.Background(), "123", "msg"); err == nil {
		t.Fatal("expected error for invalid phone")
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"11987654321", "5511987654321"},     // 11-digit local gets prefix
		{"1187654321", "551187654321"},       // 10-digit local gets prefix
		{"5511987654321", "5511987654321"},   // already prefixed, untouched
		{"+55 (11) 98765-4321", "5511987654321"}, // formatting stripped
		{"(11) 98765-4321", "5511987654321"},
		{"987654", ""},  // too short
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in, "55"); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
