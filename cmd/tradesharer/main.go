package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/raykavin/tradesharer"
	"github.com/raykavin/tradesharer/pkg/core"
	"github.com/raykavin/tradesharer/pkg/host"
	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"
)

const defaultGatewayURL = "wss://gateway.based.one/miniapp/ws"

func main() {
	rootCmd := &cobra.Command{
		Use:     "tradesharer",
		Short:   "Relay trades from the host feed to a Telegram chat",
		Version: "1.0.0",
	}

	rootCmd.AddCommand(buildRunCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the sharing pipeline",
		RunE:  runSharer,
	}
}

func runSharer(cmd *cobra.Command, args []string) error {
	// Optional .env file for local runs
	_ = godotenv.Load()

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := host.NewClient(host.Config{
		URL:   getEnvWithDefault("TRADESHARER_GATEWAY_URL", defaultGatewayURL),
		AppID: "trade-sharer",
	}, tradesharer.DefaultLog)
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}

	sharer, err := tradesharer.NewSharer(settings, client)
	if err != nil {
		return err
	}

	return sharer.Run(ctx)
}

func loadSettings() (*core.Settings, error) {
	settings := &core.Settings{
		Telegram: core.TelegramSettings{
			Token:          os.Getenv("TRADESHARER_BOT_TOKEN"),
			ChatID:         os.Getenv("TRADESHARER_CHAT_ID"),
			ControlEnabled: os.Getenv("TRADESHARER_CONTROL_ENABLED") == "true",
		},
		ReferralCode: os.Getenv("TRADESHARER_REFERRAL_CODE"),
	}

	if interval := os.Getenv("TRADESHARER_POLL_INTERVAL"); interval != "" {
		duration, err := str2duration.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid poll interval %q: %w", interval, err)
		}
		settings.PollInterval = duration
	}

	if users := os.Getenv("TRADESHARER_CONTROL_USERS"); users != "" {
		for _, raw := range strings.Split(users, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("invalid control user id %q: %w", raw, err)
			}
			settings.Telegram.Users = append(settings.Telegram.Users, id)
		}
	}

	return settings, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
