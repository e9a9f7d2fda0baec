// Command viewer is a terminal client for the fleet stream. It mirrors the
// server state through the reconciler, prints every change, and sends each
// line typed on stdin as a chat query.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"backend-pathgreen/internal/logging"
	"backend-pathgreen/internal/stream"
	"backend-pathgreen/internal/viewer"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	URL           string        `mapstructure:"VIEWER_URL"`
	Heartbeat     time.Duration `mapstructure:"VIEWER_HEARTBEAT"`
	BackoffBase   time.Duration `mapstructure:"VIEWER_BACKOFF_BASE"`
	BackoffMax    time.Duration `mapstructure:"VIEWER_BACKOFF_MAX"`
	MaxAttempts   int           `mapstructure:"VIEWER_MAX_ATTEMPTS"`
	AlertCapacity int           `mapstructure:"VIEWER_ALERT_CAPACITY"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
}

func loadConfig() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("VIEWER_URL", "ws://localhost:8080/stream/ws")
	v.SetDefault("VIEWER_HEARTBEAT", "30s")
	v.SetDefault("VIEWER_BACKOFF_BASE", "1s")
	v.SetDefault("VIEWER_BACKOFF_MAX", "30s")
	v.SetDefault("VIEWER_MAX_ATTEMPTS", 10)
	v.SetDefault("VIEWER_ALERT_CAPACITY", 50)
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func (c Config) client(out io.Writer) viewer.ClientConfig {
	return viewer.ClientConfig{
		URL:       c.URL,
		Heartbeat: c.Heartbeat,
		Backoff: viewer.Backoff{
			Base:        c.BackoffBase,
			Max:         c.BackoffMax,
			MaxAttempts: c.MaxAttempts,
		},
		AlertCapacity: c.AlertCapacity,
		OnState: func(s viewer.ConnState) {
			log.Info().Str("state", string(s)).Msg("connection state")
		},
		OnEvent: func(ev viewer.Event) {
			if line := describe(ev); line != "" {
				fmt.Fprintln(out, line)
			}
		},
	}
}

// describe renders one reconciled event as a single terminal line.
func describe(ev viewer.Event) string {
	switch ev.Type {
	case stream.TypeInitialState:
		return fmt.Sprintf("[%d] synced", ev.Seq)
	case stream.TypeEmissionUpdate:
		if ev.Record == nil {
			return ""
		}
		r := ev.Record
		return fmt.Sprintf("[%d] %-8s %-8s %6.1f km/h %8.1f g/km %9.3f kg",
			ev.Seq, r.VehicleID, r.Status, r.SpeedKmh, r.CO2RateGPerKm, r.CumulativeCO2Kg)
	case stream.TypeAlert:
		if ev.Alert == nil {
			return ""
		}
		a := ev.Alert
		return fmt.Sprintf("[%d] ALERT %s %s %s: %s", ev.Seq, a.Severity, a.AlertType, a.VehicleID, a.Message)
	case stream.TypeChatResponse:
		if ev.Chat == nil {
			return ""
		}
		line := "> " + ev.Chat.Response
		if len(ev.Chat.Citations) > 0 {
			line += "\n  sources: " + strings.Join(ev.Chat.Citations, ", ")
		}
		return line
	case stream.TypeError:
		return "server error: " + ev.Error
	}
	return ""
}

// readQueries forwards non-empty stdin lines to ask until in is exhausted.
func readQueries(ctx context.Context, in io.Reader, ask func(string) error) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if err := ask(query); err != nil {
			log.Warn().Err(err).Msg("query not sent")
		}
	}
}

func main() {
	cfg := loadConfig()
	logging.Setup(cfg.LogLevel, true)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := viewer.NewClient(cfg.client(os.Stdout))
	go readQueries(ctx, os.Stdin, client.Ask)

	log.Info().Str("url", cfg.URL).Msg("connecting")
	err := client.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("viewer stopped")
		os.Exit(1)
	}
}
