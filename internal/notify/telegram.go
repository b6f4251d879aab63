package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	cleanhttp "github.com/hashicorp/go-cleanhttp"

	"github.com/acwea904/qlback/internal/archive"
	"github.com/acwea904/qlback/internal/logger"
)

// Gauge glyphs for the retention bar.
const (
	gaugeFilled = "▓"
	gaugeEmpty  = "░"
)

// Report is the material a run summary is built from.
type Report struct {
	Artifact archive.Artifact
	Status   int
	Retained int
	KeepLast int
	Deleted  []string
	Duration time.Duration
}

// Config carries resolved Telegram settings. Leaving the token or chat id
// empty disables delivery.
type Config struct {
	BotToken string
	ChatID   string
	APIBase  string
	Timeout  time.Duration
}

// Reporter sends run summaries to a Telegram chat.
type Reporter struct {
	cfg  Config
	http *http.Client
	log  logger.Logger
}

func NewReporter(cfg Config, log logger.Logger) *Reporter {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.telegram.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cleanhttp.DefaultClient()
	hc.Timeout = cfg.Timeout
	return &Reporter{cfg: cfg, http: hc, log: log}
}

// Enabled reports whether both token and chat id are present.
func (r *Reporter) Enabled() bool {
	return r.cfg.BotToken != "" && r.cfg.ChatID != ""
}

// Gauge renders the retention bar: one filled glyph per retained artifact,
// padded with empty glyphs up to the policy size, plus the fill percentage
// rounded down.
func Gauge(retained, keepLast int) string {
	if keepLast < 1 {
		keepLast = 1
	}
	if retained < 0 {
		retained = 0
	}
	if retained > keepLast {
		retained = keepLast
	}
	bar := strings.Repeat(gaugeFilled, retained) + strings.Repeat(gaugeEmpty, keepLast-retained)
	return fmt.Sprintf("%s %d%%", bar, retained*100/keepLast)
}

// Format renders the run summary in Telegram HTML.
func Format(rep Report) string {
	var b strings.Builder
	b.WriteString("<b>📦 Qinglong backup</b>\n\n")
	fmt.Fprintf(&b, "Artifact: <code>%s</code>\n", rep.Artifact.Name)
	fmt.Fprintf(&b, "Created: %s\n", rep.Artifact.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Size: %s\n", humanize.IBytes(uint64(rep.Artifact.SizeBytes)))
	fmt.Fprintf(&b, "Upload: HTTP %d ✅\n", rep.Status)
	if len(rep.Deleted) > 0 {
		fmt.Fprintf(&b, "Cleaned up: %d old\n", len(rep.Deleted))
	}
	fmt.Fprintf(&b, "Kept: %s (%d/%d)\n", Gauge(rep.Retained, rep.KeepLast), rep.Retained, rep.KeepLast)
	fmt.Fprintf(&b, "Took: %s", rep.Duration.Round(time.Millisecond))
	return b.String()
}

// FormatFailure renders the immediate message sent when a run aborts.
func FormatFailure(stage, detail string) string {
	var b strings.Builder
	b.WriteString("<b>📦 Qinglong backup</b>\n\n")
	fmt.Fprintf(&b, "❌ %s failed\n", stage)
	fmt.Fprintf(&b, "<code>%s</code>", html.EscapeString(detail))
	return b.String()
}

// Deliver posts text to the configured chat. Callers that must not fail
// use Send instead.
func (r *Reporter) Deliver(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", r.cfg.ChatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage",
		strings.TrimRight(r.cfg.APIBase, "/"), r.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send notification: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Send delivers text when the reporter is enabled, swallowing every
// failure into a warning. Missing credentials only produce a debug line.
func (r *Reporter) Send(ctx context.Context, text string) {
	if !r.Enabled() {
		r.log.Debug("notification skipped, telegram not configured")
		return
	}
	if err := r.Deliver(ctx, text); err != nil {
		r.log.Warn("notification failed", "error", err)
		return
	}
	r.log.Info("notification sent", "chat_id", maskTail(r.cfg.ChatID))
}

// maskTail hides all but the last few characters of an identifier.
func maskTail(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
