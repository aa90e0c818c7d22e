// Package notification formats trade alerts and delivers them to Telegram.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raykavin/tradesharer/pkg/core"
	"github.com/raykavin/tradesharer/pkg/logger"
)

const defaultAPIBase = "https://api.telegram.org"

// Cause classifies a dispatch failure. None of the sink-reported causes
// are retried: they require operator intervention, not backoff.
type Cause string

const (
	CauseBotBlocked      Cause = "bot_blocked"
	CauseChatNotFound    Cause = "chat_not_found"
	CauseUnauthorized    Cause = "unauthorized"
	CauseChatDeactivated Cause = "chat_deactivated"
	CauseSendFailed      Cause = "send_failed"
	CauseTransport       Cause = "transport"
)

// DispatchError is a classified delivery failure
type DispatchError struct {
	Cause       Cause
	Description string // free-text description reported by the sink
	Err         error  // transport error, when no response was received
}

// Error implements the error interface
func (e *DispatchError) Error() string {
	switch e.Cause {
	case CauseBotBlocked:
		return "send failed: bot blocked or removed from group"
	case CauseChatNotFound:
		return "send failed: chat id invalid, add the bot to the group"
	case CauseUnauthorized:
		return "send failed: invalid bot token"
	case CauseChatDeactivated:
		return "send failed: group deleted or deactivated"
	case CauseTransport:
		return fmt.Sprintf("send failed: %v", e.Err)
	default:
		if e.Description != "" {
			return fmt.Sprintf("send failed: %s", e.Description)
		}
		return "send failed"
	}
}

// Unwrap exposes the underlying transport error
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Transient reports whether a retry could succeed without operator action
func (e *DispatchError) Transient() bool {
	return e.Cause == CauseTransport
}

// The sink's error vocabulary is free text, not an enum. Rules are
// checked in order, first match wins, unknown descriptions fall back to
// CauseSendFailed.
var causeRules = []struct {
	substring string
	cause     Cause
}{
	{"bot was blocked", CauseBotBlocked},
	{"chat not found", CauseChatNotFound},
	{"Unauthorized", CauseUnauthorized},
	{"group chat was deactivated", CauseChatDeactivated},
}

func classify(description string) Cause {
	for _, rule := range causeRules {
		if strings.Contains(description, rule.substring) {
			return rule.cause
		}
	}
	return CauseSendFailed
}

// Telegram implements core.Dispatcher against the Telegram bot API
type Telegram struct {
	settings core.TelegramSettings
	apiBase  string
	client   *http.Client
	log      logger.Logger
}

// Option is a function that configures a Telegram instance
type Option func(*Telegram)

// WithAPIBase overrides the bot API endpoint. Used in tests.
func WithAPIBase(base string) Option {
	return func(t *Telegram) {
		t.apiBase = strings.TrimSuffix(base, "/")
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(t *Telegram) {
		t.client = client
	}
}

// NewTelegram creates a dispatcher for the given credentials
func NewTelegram(settings core.TelegramSettings, log logger.Logger, options ...Option) *Telegram {
	t := &Telegram{
		settings: settings,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}

	for _, option := range options {
		option(t)
	}

	return t
}

// Send performs a single sendMessage call and classifies the outcome.
// The dispatcher never retries; the poll loop's next tick or the user's
// re-send is the retry.
func (t *Telegram) Send(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", t.settings.ChatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.settings.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &DispatchError{Cause: CauseTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return &DispatchError{Cause: CauseTransport, Err: err}
	}
	defer resp.Body.Close()

	var reply struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return &DispatchError{Cause: CauseTransport, Err: fmt.Errorf("failed to decode sink response: %w", err)}
	}

	if reply.OK {
		t.log.WithField("chat_id", t.settings.ChatID).Debug("message delivered")
		return nil
	}

	return &DispatchError{Cause: classify(reply.Description), Description: reply.Description}
}
