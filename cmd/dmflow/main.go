package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/creatoros/dmflow/internal/agents"
	"github.com/creatoros/dmflow/internal/api"
	"github.com/creatoros/dmflow/internal/cache"
	"github.com/creatoros/dmflow/internal/catalog"
	"github.com/creatoros/dmflow/internal/engine"
	"github.com/creatoros/dmflow/internal/events"
	"github.com/creatoros/dmflow/internal/genai"
	"github.com/creatoros/dmflow/internal/lockfile"
	"github.com/creatoros/dmflow/internal/messaging"
	"github.com/creatoros/dmflow/internal/models"
	"github.com/creatoros/dmflow/internal/notify"
	"github.com/creatoros/dmflow/internal/nurture"
	"github.com/creatoros/dmflow/internal/ratelimit"
	"github.com/creatoros/dmflow/internal/store"
	"github.com/creatoros/dmflow/internal/twiliowhatsapp"
	"github.com/creatoros/dmflow/internal/util"
	"github.com/creatoros/dmflow/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for dmflow state data
	DefaultStateDir = "/var/lib/dmflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "dmflow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping dmflow with configured modules")
	if err := run(flags); err != nil {
		slog.Error("dmflow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("dmflow exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string
	WhatsAppDSN    string
	StateDir       string
	OpenAIKey      string
	OpenAIModel    string
	APIAddr        string
	Channel        string
	AgentsFile     string
	CatalogFile    string
	DefaultAgentID string
	CreatorName    string
	AMQPURL        string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput    *string
	numeric     *bool
	stateDir    *string
	dbDSN       *string
	waDSN       *string
	openaiKey   *string
	apiAddr     *string
	channel     *string
	agentsFile  *string
	catalogFile *string
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DMFLOW_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		WhatsAppDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:       os.Getenv("DMFLOW_STATE_DIR"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		APIAddr:        os.Getenv("API_ADDR"),
		Channel:        util.GetEnvDefault("CHANNEL", "none"),
		AgentsFile:     os.Getenv("AGENTS_FILE"),
		CatalogFile:    os.Getenv("CATALOG_FILE"),
		DefaultAgentID: util.GetEnvDefault("DEFAULT_AGENT_ID", "default"),
		CreatorName:    os.Getenv("CREATOR_NAME"),
		AMQPURL:        os.Getenv("AMQP_URL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No DMFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Default to SQLite in the state directory when no database URL is given.
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, "whatsmeow.db")
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"DMFLOW_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"CHANNEL", config.Channel,
		"AGENTS_FILE", config.AgentsFile,
		"CATALOG_FILE", config.CatalogFile,
		"AMQP_URL_SET", config.AMQPURL != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:    flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:     flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for dmflow data (overrides $DMFLOW_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN for the follower store (overrides $DATABASE_URL)"),
		waDSN:       flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "database DSN for the WhatsApp session store (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		channel:     flag.String("channel", config.Channel, "inbound message channel: twilio, whatsapp or none (overrides $CHANNEL)"),
		agentsFile:  flag.String("agents-file", config.AgentsFile, "JSON file with agent configurations (overrides $AGENTS_FILE)"),
		catalogFile: flag.String("catalog-file", config.CatalogFile, "JSON file with products and knowledge base (overrides $CATALOG_FILE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"channel", *flags.channel,
		"agentsFile", *flags.agentsFile,
		"catalogFile", *flags.catalogFile)

	// Follow the state directory when the DSN still points at the default.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite3" {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// buildStore selects the follower store backend from the DSN.
func buildStore(flags Flags) (store.FollowerStore, error) {
	if *flags.dbDSN == "" {
		slog.Warn("No database DSN provided, using in-memory store (state is lost on restart)")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags, config Config) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	if config.OpenAIModel != "" {
		opts = append(opts, genai.WithModel(config.OpenAIModel))
	}
	return opts
}

// buildAgents loads agent configurations from file or registers a default.
func buildAgents(flags Flags, config Config) (*agents.Registry, error) {
	registry := agents.NewRegistry()
	if *flags.agentsFile != "" {
		if err := registry.LoadFile(*flags.agentsFile); err != nil {
			return nil, err
		}
		slog.Info("Agent configurations loaded", "file", *flags.agentsFile, "count", len(registry.List()))
		return registry, nil
	}

	cfg := models.AgentConfig{
		AgentID:     config.DefaultAgentID,
		CreatorName: config.CreatorName,
	}
	if err := registry.Register(cfg); err != nil {
		return nil, err
	}
	slog.Info("No agents file provided, registered default agent", "agent_id", cfg.AgentID)
	return registry, nil
}

// buildCatalog loads the product catalog when configured.
func buildCatalog(flags Flags) (*catalog.Catalog, error) {
	if *flags.catalogFile == "" {
		slog.Warn("No catalog file provided, replies will have no product facts")
		return catalog.New(nil, nil), nil
	}
	return catalog.Load(*flags.catalogFile)
}

// buildMessagingService constructs the configured inbound channel.
func buildMessagingService(flags Flags) (messaging.Service, *messaging.TwilioService, error) {
	switch *flags.channel {
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, err
		}
		svc := messaging.NewTwilioService(client)
		return svc, svc, nil
	case "whatsapp":
		var waOpts []whatsapp.Option
		if *flags.waDSN != "" {
			waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.waDSN))
		}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewWhatsAppService(client), nil, nil
	default:
		slog.Info("No inbound channel configured, running API-only", "channel", *flags.channel)
		return nil, nil, nil
	}
}

// buildEventPublisher connects to RabbitMQ when an AMQP URL is configured.
func buildEventPublisher(config Config) events.Publisher {
	if config.AMQPURL == "" {
		return events.NoopPublisher{}
	}
	pub, err := events.NewRabbitPublisher(config.AMQPURL)
	if err != nil {
		slog.Error("Failed to connect to RabbitMQ, events disabled", "error", err)
		return events.NoopPublisher{}
	}
	return pub
}

// buildNotifier configures escalation email when SMTP settings are present.
func buildNotifier() notify.Notifier {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return notify.NoopNotifier{}
	}
	return notify.NewEmailNotifier(
		host,
		util.ParseIntEnv("SMTP_PORT", 587),
		os.Getenv("SMTP_USER"),
		os.Getenv("SMTP_PASS"),
		util.GetEnvDefault("SMTP_FROM", "dmflow@localhost"),
		os.Getenv("ESCALATION_EMAIL"),
	)
}

func run(flags Flags) error {
	config := loadEnvironmentConfig()

	followerStore, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer followerStore.Close()

	genaiClient, err := genai.NewClient(buildGenAIOptions(flags, config)...)
	if err != nil {
		return err
	}

	registry, err := buildAgents(flags, config)
	if err != nil {
		return err
	}

	cat, err := buildCatalog(flags)
	if err != nil {
		return err
	}

	service, twilioSvc, err := buildMessagingService(flags)
	if err != nil {
		return err
	}

	publisher := buildEventPublisher(config)
	defer publisher.Close()

	// Follow-up delivery goes out on the same channel inbound arrives on.
	deliver := func(agentID, followerID string, seq nurture.SequenceType, seqCtx nurture.Context) {
		text := nurture.MessageFor(seq, seqCtx)
		if text == "" || service == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := service.SendMessage(ctx, followerID, text); err != nil {
			slog.Error("Follow-up delivery failed", "error", err, "agent_id", agentID, "follower_id", followerID, "sequence", seq)
		}
	}
	scheduler := nurture.NewTimerScheduler(deliver)
	defer scheduler.Stop()

	eng, err := engine.New(engine.Deps{
		Store:    followerStore,
		Agents:   registry,
		GenAI:    genaiClient,
		Cache:    cache.NewMemoryCache(util.ParseDurationEnv("CACHE_TTL", cache.DefaultTTL)),
		Limiter:  ratelimit.NewFixedWindowLimiter(util.ParseDurationEnv("RATE_LIMIT_WINDOW", ratelimit.DefaultWindow), util.ParseIntEnv("RATE_LIMIT_MAX", ratelimit.DefaultMaxMessages)),
		Catalog:  cat,
		Nurture:  nurture.NewTrigger(scheduler),
		Notifier: buildNotifier(),
		Events:   publisher,
	})
	if err != nil {
		return err
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if twilioSvc != nil {
		apiOpts = append(apiOpts, api.WithTwilioWebhook(twilioSvc.WebhookHandler))
	}
	server, err := api.NewServer(eng, registry, followerStore, apiOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if service != nil {
		if err := service.Start(ctx); err != nil {
			return err
		}
		router := messaging.NewRouter(config.DefaultAgentID, service, eng)
		go router.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	if service != nil {
		if err := service.Stop(); err != nil {
			slog.Error("Messaging service stop failed", "error", err)
		}
	}
	return nil
}
