package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/synermind/synermind/internal/alert"
	"github.com/synermind/synermind/internal/api"
	"github.com/synermind/synermind/internal/dispatch"
	"github.com/synermind/synermind/internal/genai"
	"github.com/synermind/synermind/internal/store"
	"github.com/synermind/synermind/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Synermind state data
	DefaultStateDir = "/var/lib/synermind"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "synermind.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	client, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to create GenAI client", "error", err)
		os.Exit(1)
	}

	alerts := buildAlertService(config)
	sessions := dispatch.NewSessionManager(client, st)
	dispatcher := dispatch.NewDispatcher(st, client, alerts, sessions)
	server := api.NewServer(st, dispatcher, buildAPIOptions(flags)...)

	slog.Info("Bootstrapping Synermind with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := server.Run(); err != nil {
		slog.Error("Synermind failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Synermind exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	OpenAIKey        string
	APIAddr          string
	SMTPHost         string
	TwilioAccountSID string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	openaiKey *string
	apiAddr   *string
}

// initializeLogger sets up structured logging. Debug level by default;
// SYNERMIND_DEBUG=false drops to info for quieter deployments.
func initializeLogger() {
	level := slog.LevelDebug
	if !util.ParseBoolEnv("SYNERMIND_DEBUG", true) {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("SYNERMIND_STATE_DIR"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		APIAddr:          os.Getenv("API_ADDR"),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SYNERMIND_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Without a database URL, fall back to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"SYNERMIND_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"SMTP_HOST_SET", config.SMTPHost != "",
		"TWILIO_ACCOUNT_SID_SET", config.TwilioAccountSID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for Synermind data (overrides $SYNERMIND_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN for the store (overrides $DATABASE_URL)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	// Follow the state directory when the DSN was derived from it
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// openStore picks the backend from the DSN shape and runs migrations.
func openStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == store.DSNTypePostgres {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAlertService wires the notification channels that are configured in
// the environment. Channels without credentials stay nil; alert records are
// still persisted even when no channel can deliver.
func buildAlertService(config Config) *alert.Service {
	var email alert.Notifier
	if config.SMTPHost != "" {
		n, err := alert.NewSMTPNotifier()
		if err != nil {
			slog.Error("Failed to configure SMTP notifier, email alerts disabled", "error", err)
		} else {
			email = n
			slog.Info("Email alert channel configured", "smtp_host", config.SMTPHost)
		}
	} else {
		slog.Warn("No SMTP_HOST set, email alerts disabled")
	}

	var sms alert.Notifier
	if config.TwilioAccountSID != "" {
		n, err := alert.NewTwilioNotifier()
		if err != nil {
			slog.Error("Failed to configure Twilio notifier, SMS alerts disabled", "error", err)
		} else {
			sms = n
			slog.Info("SMS alert channel configured")
		}
	} else {
		slog.Warn("No TWILIO_ACCOUNT_SID set, SMS alerts disabled")
	}

	return alert.NewService(email, sms)
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
