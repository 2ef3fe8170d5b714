package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestTelegramTarget(t *testing.T, handler http.HandlerFunc) *TelegramTarget {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target := NewTelegramTarget("123:abc", -100500)
	target.apiBase = server.URL
	return target
}

func TestTelegramTargetSend(t *testing.T) {
	var gotParseMode, gotChatID, gotText string
	target := newTestTelegramTarget(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm failed: %v", err)
		}
		gotParseMode = r.PostForm.Get("parse_mode")
		gotChatID = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	})

	if err := target.Send(context.Background(), "**hello**"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotParseMode != "Markdown" {
		t.Fatalf("parse_mode = %q, want Markdown", gotParseMode)
	}
	if gotChatID != "-100500" {
		t.Fatalf("chat_id = %q", gotChatID)
	}
	if gotText != "**hello**" {
		t.Fatalf("text = %q", gotText)
	}
}

func TestTelegramTargetSendPlainOmitsParseMode(t *testing.T) {
	var hasParseMode bool
	target := newTestTelegramTarget(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		_, hasParseMode = r.PostForm["parse_mode"]
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	})

	if err := target.SendPlain(context.Background(), "hello"); err != nil {
		t.Fatalf("SendPlain failed: %v", err)
	}
	if hasParseMode {
		t.Fatal("plain send must not set parse_mode")
	}
}

func TestTelegramTargetErrorStatus(t *testing.T) {
	target := newTestTelegramTarget(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"Bad Request: can't parse entities"}`, http.StatusBadRequest)
	})

	if err := target.Send(context.Background(), "*broken"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
