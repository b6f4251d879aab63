package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/acwea904/qlback/internal/archive"
	"github.com/acwea904/qlback/internal/logger"
)

func TestGauge(t *testing.T) {
	tests := []struct {
		retained, keepLast int
		want               string
	}{
		{3, 5, "▓▓▓░░ 60%"},
		{5, 5, "▓▓▓▓▓ 100%"},
		{1, 5, "▓░░░░ 20%"},
		{0, 5, "░░░░░ 0%"},
		{1, 3, "▓░░ 33%"},
		{2, 3, "▓▓░ 66%"},
		{1, 1, "▓ 100%"},
		{7, 5, "▓▓▓▓▓ 100%"}, // clamped
	}
	for _, tt := range tests {
		if got := Gauge(tt.retained, tt.keepLast); got != tt.want {
			t.Errorf("Gauge(%d, %d) = %q, want %q", tt.retained, tt.keepLast, got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	rep := Report{
		Artifact: archive.Artifact{
			Name:      "qinglong-backup-2026-08-24-10-00-00.tar.gz",
			CreatedAt: time.Date(2026, 8, 24, 10, 0, 0, 0, archive.ArtifactZone),
			SizeBytes: 1536 * 1024,
		},
		Status:   201,
		Retained: 3,
		KeepLast: 5,
		Deleted:  []string{"qinglong-backup-2026-08-20-10-00-00.tar.gz"},
		Duration: 12300 * time.Millisecond,
	}

	msg := Format(rep)
	for _, want := range []string{
		"<code>qinglong-backup-2026-08-24-10-00-00.tar.gz</code>",
		"2026-08-24 10:00:00",
		"1.5 MiB",
		"HTTP 201",
		"Cleaned up: 1 old",
		"▓▓▓░░ 60% (3/5)",
		"12.3s",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatFailure(t *testing.T) {
	msg := FormatFailure("upload", "status 500 from <server>")
	if !strings.Contains(msg, "❌ upload failed") {
		t.Errorf("message missing failure marker:\n%s", msg)
	}
	if !strings.Contains(msg, "&lt;server&gt;") {
		t.Errorf("detail not HTML-escaped:\n%s", msg)
	}
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		name        string
		token, chat string
		want        bool
	}{
		{"both set", "123:abc", "42", true},
		{"no token", "", "42", false},
		{"no chat", "123:abc", "", false},
		{"neither", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReporter(Config{BotToken: tt.token, ChatID: tt.chat}, logger.Nop())
			if r.Enabled() != tt.want {
				t.Errorf("Enabled() = %v, want %v", r.Enabled(), tt.want)
			}
		})
	}
}

func TestDeliver(t *testing.T) {
	var got struct {
		path, contentType, chatID, parseMode, text string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.contentType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got.chatID = r.PostForm.Get("chat_id")
		got.parseMode = r.PostForm.Get("parse_mode")
		got.text = r.PostForm.Get("text")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	r := NewReporter(Config{
		BotToken: "123:abc",
		ChatID:   "42",
		APIBase:  srv.URL,
	}, logger.Nop())

	if err := r.Deliver(context.Background(), "<b>hello</b>"); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}

	if got.path != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q, want /bot123:abc/sendMessage", got.path)
	}
	if got.contentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", got.contentType)
	}
	if got.chatID != "42" {
		t.Errorf("chat_id = %q, want 42", got.chatID)
	}
	if got.parseMode != "HTML" {
		t.Errorf("parse_mode = %q, want HTML", got.parseMode)
	}
	if got.text != "<b>hello</b>" {
		t.Errorf("text = %q", got.text)
	}
}

func TestDeliver_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	r := NewReporter(Config{BotToken: "123:abc", ChatID: "42", APIBase: srv.URL}, logger.Nop())
	if err := r.Deliver(context.Background(), "hi"); err == nil {
		t.Error("Deliver returned no error on 400")
	}
}

func TestDeliver_StalledServerTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release // hold the request open until the test is done
	}))
	defer srv.Close()
	defer close(release)

	r := NewReporter(Config{
		BotToken: "123:abc",
		ChatID:   "42",
		APIBase:  srv.URL,
		Timeout:  200 * time.Millisecond,
	}, logger.Nop())

	start := time.Now()
	if err := r.Deliver(context.Background(), "hi"); err == nil {
		t.Fatal("Deliver against a stalled server returned no error")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Deliver took %s, the client timeout did not bound the call", elapsed)
	}
}

func TestSend(t *testing.T) {
	t.Run("skips when not configured", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
		}))
		defer srv.Close()

		r := NewReporter(Config{APIBase: srv.URL}, logger.Nop())
		r.Send(context.Background(), "hi")
		if calls != 0 {
			t.Errorf("unconfigured reporter made %d requests", calls)
		}
	})

	t.Run("swallows delivery failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		r := NewReporter(Config{BotToken: "123:abc", ChatID: "42", APIBase: srv.URL}, logger.Nop())
		r.Send(context.Background(), "hi") // must not panic or propagate
	})
}

func TestMaskTail(t *testing.T) {
	if got := maskTail("123456789"); got != "****6789" {
		t.Errorf("maskTail = %q", got)
	}
	if got := maskTail("ab"); got != "****" {
		t.Errorf("maskTail short = %q", got)
	}
}
