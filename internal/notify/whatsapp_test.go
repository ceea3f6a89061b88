package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWhatsAppSenderSend(t *testing.T) {
	var got whatsAppPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWhatsAppSender("12345", "secret-token")
	s.baseURL = srv.URL

	if err := s.Send(context.Background(), "5511999990000", "olá"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if auth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.MessagingProduct != "whatsapp" || got.To != "5511999990000" || got.Text.Body != "olá" {
		t.Errorf("payload = %+v", got)
	}
}

func TestWhatsAppSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewWhatsAppSender("12345", "bad")
	s.baseURL = srv.URL

	if err := s.Send(context.Background(), "5511999990000", "olá"); err == nil {
		t.Fatal("Send() should fail on non-2xx status")
	}
}
