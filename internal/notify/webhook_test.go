package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegramSenderPayload(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("token", "chat-1")
	s.sendURL = srv.URL
	if err := s.Send(context.Background(), "Market Ended", "details"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got["chat_id"] != "chat-1" {
		t.Errorf("chat_id = %q", got["chat_id"])
	}
	if got["text"] != "*Market Ended*\ndetails" {
		t.Errorf("text = %q", got["text"])
	}
	if got["parse_mode"] != "Markdown" {
		t.Errorf("parse_mode = %q", got["parse_mode"])
	}
}

func TestDiscordSenderPayloadAndNoContent(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	if err := s.Send(context.Background(), "Market Resolved", "winner: Yes"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["content"] != "**Market Resolved**\nwinner: Yes" {
		t.Errorf("content = %q", got["content"])
	}
}

func TestSenderErrorIncludesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	err := s.Send(context.Background(), "T", "M")
	if err == nil {
		t.Fatal("Send accepted a 400 response")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("error %q missing status or body detail", err)
	}
}
