package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer xoxb-1" {
			t.Errorf("missing bot token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"ok":true,"ts":"1700000000.0001"}`)
	}))
	defer srv.Close()

	c := NewClient("xoxb-1")
	c.APIURL = srv.URL
	ts, err := c.PostMessage(context.Background(), "C1", "batch done", "")
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if ts != "1700000000.0001" {
		t.Fatalf("unexpected ts %q", ts)
	}
	if got["channel"] != "C1" || got["text"] != "batch done" {
		t.Fatalf("unexpected payload %v", got)
	}
	if _, ok := got["thread_ts"]; ok {
		t.Fatalf("thread_ts should be omitted for root messages")
	}
}

func TestPostMessageSlackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"error":"channel_not_found"}`)
	}))
	defer srv.Close()

	c := NewClient("xoxb-1")
	c.APIURL = srv.URL
	if _, err := c.PostMessage(context.Background(), "C1", "hi", ""); err == nil || err.Error() != "channel_not_found" {
		t.Fatalf("expected channel_not_found, got %v", err)
	}
}

func TestNotifierDisabled(t *testing.T) {
	if n := NewNotifier("", "C1"); n.Enabled() {
		t.Fatalf("notifier without token should be disabled")
	}
	var n *Notifier
	n.Notify(context.Background(), "dropped %d", 1)
}
