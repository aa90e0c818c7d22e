package notification

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/raykavin/tradesharer/pkg/core"
	"github.com/raykavin/tradesharer/pkg/logger"
	tb "gopkg.in/tucnak/telebot.v2"
)

// StatusSource exposes pipeline state to the control bot
type StatusSource interface {
	Status() string
}

// Control is an optional interactive command surface for the sharer bot.
// It answers /status, /test and /help for the configured users.
type Control struct {
	client     *tb.Bot
	dispatcher core.Dispatcher
	status     StatusSource
	users      []int
	log        logger.Logger
}

// NewControl creates and initializes the command bot
func NewControl(settings core.TelegramSettings, dispatcher core.Dispatcher, status StatusSource, log logger.Logger) (*Control, error) {
	poller := &tb.LongPoller{Timeout: 10 * time.Second}
	userMiddleware := createAuthMiddleware(poller, settings.Users, log)

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    userMiddleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	control := &Control{
		client:     client,
		dispatcher: dispatcher,
		status:     status,
		users:      settings.Users,
		log:        log,
	}

	if err := client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/status", Description: "Check sharer status"},
		{Text: "/test", Description: "Send a test message to the share chat"},
	}); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	client.Handle("/help", control.HelpHandle)
	client.Handle("/status", control.StatusHandle)
	client.Handle("/test", control.TestHandle)

	return control, nil
}

// createAuthMiddleware creates a middleware to validate authorized users
func createAuthMiddleware(poller *tb.LongPoller, users []int, log logger.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("message or sender is nil")
			return false
		}

		if slices.Contains(users, int(u.Message.Sender.ID)) {
			return true
		}

		log.WithField("user_id", u.Message.Sender.ID).Warn("unauthorized user")
		return false
	})
}

// Start begins polling for commands
func (c *Control) Start() {
	go c.client.Start()
}

// Stop halts the command poller
func (c *Control) Stop() {
	c.client.Stop()
}

// HelpHandle displays available commands
func (c *Control) HelpHandle(m *tb.Message) {
	commands, err := c.client.GetCommands()
	if err != nil {
		c.log.WithError(err).Error("failed to get commands")
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}

	c.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

// StatusHandle reports the current pipeline status
func (c *Control) StatusHandle(m *tb.Message) {
	c.sendMessage(m.Sender, fmt.Sprintf("Status: `%s`", c.status.Status()))
}

// TestHandle sends the fixed test message through the dispatcher so the
// user can verify token and chat id before any trade happens.
func (c *Control) TestHandle(m *tb.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.dispatcher.Send(ctx, TestMessage); err != nil {
		c.sendMessage(m.Sender, fmt.Sprintf("❌ Test failed: %s", err))
		return
	}

	c.sendMessage(m.Sender, "✅ Test sent to Telegram!")
}

// sendMessage sends a message to a specific user
func (c *Control) sendMessage(to *tb.User, text string) {
	if _, err := c.client.Send(to, text); err != nil {
		c.log.WithError(err).Error("failed to send message")
	}
}
