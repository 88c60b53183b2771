package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hamavrikan/leadbot/internal/api"
	"github.com/hamavrikan/leadbot/internal/events"
	"github.com/hamavrikan/leadbot/internal/flow"
	"github.com/hamavrikan/leadbot/internal/ingress"
	"github.com/hamavrikan/leadbot/internal/messaging"
	"github.com/hamavrikan/leadbot/internal/store"
	"github.com/hamavrikan/leadbot/internal/util"
	"github.com/hamavrikan/leadbot/internal/waha"
	"github.com/hamavrikan/leadbot/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for leadbot state data
	DefaultStateDir = "/var/lib/leadbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "leadbot.db"
	// DefaultGateway is the messaging provider used when none is configured
	DefaultGateway = "waha"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	gateway, err := buildGateway(flags)
	if err != nil {
		slog.Error("Failed to initialize messaging gateway", "error", err)
		os.Exit(1)
	}

	publisher := buildPublisher(flags)
	defer publisher.Close()

	engine, err := flow.NewEngine(
		flow.WithStore(st),
		flow.WithGateway(gateway),
		flow.WithPublisher(publisher),
		flow.WithOwnerPhone(*flags.ownerPhone),
	)
	if err != nil {
		slog.Error("Failed to initialize flow engine", "error", err)
		os.Exit(1)
	}
	engine.StartJanitor(ctx)

	guard := ingress.NewGuard()
	guard.Start(ctx)

	server, err := api.NewServer(
		api.WithAddr(*flags.apiAddr),
		api.WithEngine(engine),
		api.WithGuard(guard),
		api.WithStore(st),
	)
	if err != nil {
		slog.Error("Failed to initialize API server", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping leadbot", "gateway", *flags.gateway, "api_addr", *flags.apiAddr, "owner_phone", *flags.ownerPhone)
	if err := server.Run(ctx); err != nil {
		slog.Error("Leadbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Leadbot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	WhatsAppDSN string
	APIAddr     string
	Gateway     string
	OwnerPhone  string
	AMQPURL     string
}

// Flags holds command line flag values
type Flags struct {
	dbDSN       *string
	whatsappDSN *string
	apiAddr     *string
	gateway     *string
	ownerPhone  *string
	amqpURL     *string
	qrOutput    *string
	numeric     *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		DatabaseURL: os.Getenv("DATABASE_URL"),
		WhatsAppDSN: os.Getenv("WHATSAPP_DB_DSN"),
		APIAddr:     util.GetEnv("API_ADDR", api.DefaultAddr),
		Gateway:     util.GetEnv("LEADBOT_GATEWAY", DefaultGateway),
		OwnerPhone:  util.GetEnv("OWNER_PHONE", flow.DefaultOwnerPhone),
		AMQPURL:     os.Getenv("AMQP_URL"),
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(DefaultStateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL set, using default SQLite path", "path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(DefaultStateDir, "whatsmeow.db")
	}
	return config
}

// parseCommandLineFlags parses flags, with environment values as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:       flag.String("db", config.DatabaseURL, "database DSN (postgres URL or SQLite file path)"),
		whatsappDSN: flag.String("whatsapp-db", config.WhatsAppDSN, "whatsmeow session database DSN"),
		apiAddr:     flag.String("addr", config.APIAddr, "API listen address"),
		gateway:     flag.String("gateway", config.Gateway, "messaging gateway: waha, whatsmeow or twilio"),
		ownerPhone:  flag.String("owner", config.OwnerPhone, "operator phone for lead notifications"),
		amqpURL:     flag.String("amqp", config.AMQPURL, "AMQP broker URL for lead events (optional)"),
		qrOutput:    flag.String("qr-output", os.Getenv("LEADBOT_QR_PATH"), "write whatsmeow login QR code to file"),
		numeric:     flag.Bool("numeric-code", util.ParseBoolEnv("LEADBOT_NUMERIC_CODE"), "use numeric whatsmeow login code instead of QR"),
	}
	flag.Parse()
	return flags
}

// buildStore opens the conversation/lead store matching the DSN type.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGateway constructs the configured messaging gateway.
func buildGateway(flags Flags) (messaging.Gateway, error) {
	switch *flags.gateway {
	case "waha":
		return messaging.NewWAHAGateway(messaging.WithWAHAClient(waha.NewClient())), nil
	case "whatsmeow":
		waOpts := []whatsapp.Option{whatsapp.WithDBDSN(*flags.whatsappDSN)}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create whatsmeow client: %w", err)
		}
		return messaging.NewWhatsAppGateway(messaging.WithWhatsAppClient(client))
	case "twilio":
		return messaging.NewTwilioGateway(messaging.WithTwilioCredentials(
			os.Getenv("TWILIO_ACCOUNT_SID"),
			os.Getenv("TWILIO_AUTH_TOKEN"),
			os.Getenv("TWILIO_FROM_NUMBER"),
		))
	default:
		return nil, fmt.Errorf("unknown gateway %q", *flags.gateway)
	}
}

// buildPublisher connects the lead event publisher, falling back to a no-op
// when no broker is configured or reachable.
func buildPublisher(flags Flags) events.Publisher {
	if *flags.amqpURL == "" {
		slog.Debug("No AMQP_URL set, lead events disabled")
		return events.NewFallback()
	}
	publisher, err := events.NewAMQPPublisher(events.WithURL(*flags.amqpURL))
	if err != nil {
		slog.Error("Failed to connect lead event publisher, continuing without events", "error", err)
		return events.NewFallback()
	}
	return publisher
}
