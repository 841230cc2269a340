package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parley-chat/parley-go/parley"
)

var (
	flagURL   string
	flagToken string
	flagUser  string
	flagDebug bool
)

var joinCmd = &cobra.Command{
	Use:   "join <room>",
	Short: "Join a room, tail the synchronized log, and send lines from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJoin(args[0])
	},
}

func init() {
	joinCmd.Flags().StringVar(&flagURL, "url", "", "WebSocket endpoint (defaults to PARLEY_URL)")
	joinCmd.Flags().StringVar(&flagToken, "token", "", "session JWT (defaults to PARLEY_TOKEN)")
	joinCmd.Flags().StringVar(&flagUser, "user", "", "user id (defaults to PARLEY_USER)")
	joinCmd.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(joinCmd)
}

func runJoin(room string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := parley.DefaultConfig()
	cfg.URL = firstOf(flagURL, os.Getenv("PARLEY_URL"))
	cfg.Token = firstOf(flagToken, os.Getenv("PARLEY_TOKEN"))
	cfg.UserID = firstOf(flagUser, os.Getenv("PARLEY_USER"))
	if cfg.URL == "" {
		return fmt.Errorf("no endpoint: pass --url or set PARLEY_URL")
	}

	client := parley.NewClient(cfg)
	client.SetLogger(parley.NewSlogLogger(logger))
	session := client.Session(room)

	session.OnNotice(func(text string) {
		fmt.Fprintf(os.Stderr, "! %s\n", text)
	})
	session.OnSessionEnded(func(reason string) {
		fmt.Fprintf(os.Stderr, "session ended: %s\n", reason)
		cancel()
	})

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()
	defer session.Close(context.Background())

	if err := session.Setup(ctx); err != nil {
		return fmt.Errorf("join %s: %w", room, err)
	}

	go tailStore(ctx, session)
	go readStdin(ctx, session)

	<-ctx.Done()
	return nil
}

// tailStore prints every message the sync engine admits, in log order.
func tailStore(ctx context.Context, s *parley.Session) {
	updates, err := s.Notifier().Subscribe(ctx, parley.TopicStoreUpdated)
	if err != nil {
		return
	}
	printed := make(map[string]bool)
	for msg := range updates {
		for _, m := range s.Messages() {
			if printed[m.ID] {
				continue
			}
			printed[m.ID] = true
			ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
			fmt.Printf("[%s] %s: %s\n", ts, m.Sender, m.Text)
		}
		msg.Ack()
	}
}

func readStdin(ctx context.Context, s *parley.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/older" {
			if err := s.LoadOlder(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "! %v\n", err)
			}
			continue
		}
		if err := s.SendMessage(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "! %v\n", err)
		}
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
