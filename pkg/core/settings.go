package core

import (
	"errors"
	"time"
)

// Settings represents the main configuration for the application
type Settings struct {
	Telegram     TelegramSettings // Telegram credentials and control bot settings
	ReferralCode string           // Referral code appended to the share link, blank falls back to the default
	PollInterval time.Duration    // Order reconciliation interval, zero means the default
}

// TelegramSettings holds configuration for Telegram integration
type TelegramSettings struct {
	Token          string // Telegram bot token
	ChatID         string // Target chat for trade alerts
	ControlEnabled bool   // Whether the interactive command bot is started
	Users          []int  // User IDs allowed to issue commands
}

var (
	ErrMissingToken  = errors.New("telegram bot token is required")
	ErrMissingChatID = errors.New("telegram chat id is required")
)

// Validate checks the blocking preconditions for starting a pipeline.
// Both credentials must be present before any subscription is attempted.
func (s *Settings) Validate() error {
	if s.Telegram.Token == "" {
		return ErrMissingToken
	}
	if s.Telegram.ChatID == "" {
		return ErrMissingChatID
	}
	return nil
}
