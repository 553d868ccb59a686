package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/robertomojr/whatsapp-backend/internal/channel"
	"github.com/robertomojr/whatsapp-backend/internal/config"
	"github.com/robertomojr/whatsapp-backend/internal/provider"
	"github.com/robertomojr/whatsapp-backend/internal/server"
	"github.com/robertomojr/whatsapp-backend/internal/store"
)

var (
	version    = "0.3.0"
	configPath string // overridable via --config flag
)

func main() {
	root := &cobra.Command{
		Use:   "whatsapp-backend",
		Short: "WhatsApp Cloud API webhook relay with OpenAI-generated replies",
		Long:  "Receives WhatsApp Cloud API webhook events, generates replies through the OpenAI chat-completions API, persists the exchange and optionally sends the reply back.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (optional, env vars take precedence)")

	root.AddCommand(serveCmd())
	root.AddCommand(initCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook relay server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)

	// Graceful shutdown on signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := newStore(cfg, logger)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	gen := provider.NewOpenAI(cfg.OpenAI, logger)
	sender := channel.NewClient(cfg.WhatsApp, logger)

	srv := server.New(cfg, gen, sender, st, logger)

	logger.Info("whatsapp-backend starting",
		"version", version,
		"port", cfg.Server.Port,
		"model", cfg.OpenAI.Model,
		"send_reply", cfg.WhatsApp.SendReply,
	)

	return srv.Start(ctx)
}

// newStore picks the persistence backend: Supabase REST when configured,
// a local SQLite file otherwise, or none.
func newStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch {
	case cfg.Store.SupabaseURL != "":
		return store.NewRESTStore(cfg.Store, logger), nil
	case cfg.Store.SQLitePath != "":
		return store.NewSQLiteStore(cfg.Store.SQLitePath, logger)
	default:
		logger.Warn("no store configured, exchanges will not be persisted")
		return nil, nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config.yaml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if configPath != "" {
				path = configPath
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("refusing to overwrite existing %s", path)
			}
			if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("whatsapp-backend", version)
		},
	}
}

// Optional settings are left empty or commented out instead of using
// ${VAR:-} placeholders: ExpandEnvVars keeps the literal text when a var
// is unset and the default is empty, which would silently enable
// signature verification with a garbage secret.
const starterConfig = `server:
  port: 3000

whatsapp:
  verifyToken: ${WHATSAPP_VERIFY_TOKEN}
  accessToken: ${WHATSAPP_TOKEN}
  phoneNumberId: ${WHATSAPP_PHONE_NUMBER_ID}
  # appSecret enables X-Hub-Signature-256 verification; leave empty to skip it
  appSecret: ""
  sendReply: false

openai:
  apiKey: ${OPENAI_API_KEY}
  model: gpt-4.1-mini

store:
  # Set supabaseUrl + supabaseKey for Supabase REST, or sqlitePath for a
  # local file. With neither, exchanges are not persisted.
  # supabaseUrl: https://xyz.supabase.co
  # supabaseKey: service-role-key
  # sqlitePath: whatsapp-backend.db
  table: messages

logLevel: info
`
