package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/trustbond/api/internal/cache"
	"github.com/trustbond/api/internal/chain"
	"github.com/trustbond/api/internal/config"
	"github.com/trustbond/api/internal/env"
	"github.com/trustbond/api/internal/errHandler"
	"github.com/trustbond/api/internal/file"
	"github.com/trustbond/api/internal/helper"
	"github.com/trustbond/api/internal/jobs"
	"github.com/trustbond/api/internal/models"
	"github.com/trustbond/api/internal/realtime"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/smtp"
	"github.com/trustbond/api/internal/stream"
	"github.com/trustbond/api/internal/tracker"
	"github.com/trustbond/api/internal/trust"
	"github.com/trustbond/api/internal/wallet"
	"github.com/trustbond/api/internal/worker"
)

const (
	// simulated receipts arrive this long after the first poll in demo mode
	demoConfirmationDelay = 6 * time.Second

	realtimeBuffer = 32
)

// Essential services and resources are exposed to the application
// this makes it possible for methods to have access to these items and when they need them
type Application struct {
	Config       config.Config
	DB           repository.Database
	Logger       *slog.Logger
	Mailer       *smtp.Mailer
	WG           sync.WaitGroup
	errorHandler *errHandler.ErrorHandler
	helper       *helper.HelperRepository
	Kafka        *stream.KafkaStream
	Cache        *cache.Cache
	FileUploader *file.FileUploader
	Chain        chain.Client
	Contracts    *chain.Contracts
	Wallets      *wallet.Manager
	Hub          *realtime.Hub
	Tracker      *tracker.Tracker
	Trust        *trust.Service
	Scheduler    gocron.Scheduler
	Worker       *worker.Worker

	cancelWorkers context.CancelFunc
}

// LoadConfig reads the configuration from the environment and the .env file.
// Default values are for development only; make sure no production-level value
// is exposed as a default here.
func LoadConfig(logger *slog.Logger) (config.Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file loaded", "error", err)
	}

	var cfg config.Config

	cfg.BaseURL = env.GetString("BASE_URL", "http://localhost:4444")
	cfg.HttpPort = env.GetInt("HTTP_PORT", 4444)
	cfg.Mode = env.GetString("APP_MODE", config.ModeDemo)

	cfg.Db.Dsn = env.GetString("DB_DSN", "user:pass@localhost:5432/db?sslmode=disable")
	cfg.Db.Automigrate = env.GetBool("DB_AUTOMIGRATE", true)

	cfg.Jwt.SecretKey = env.GetString("JWT_SECRET_KEY", "ajf5nx3qmp6zquevllxocxqvyz42ypuo")

	// server errors won't be sent via email if the NOTIFICATIONS_EMAIL wasn't set in the .env file
	cfg.Notifications.Email = env.GetString("NOTIFICATIONS_EMAIL", "")

	cfg.Smtp.Host = env.GetString("SMTP_HOST", "example.smtp.host")
	cfg.Smtp.Port = env.GetInt("SMTP_PORT", 25)
	cfg.Smtp.Username = env.GetString("SMTP_USERNAME", "example_username")
	cfg.Smtp.Password = env.GetString("SMTP_PASSWORD", "pa55word")
	cfg.Smtp.From = env.GetString("SMTP_FROM", "TrustBond <no_reply@example.org>")

	cfg.RedisServer = env.GetString("REDIS_SERVER", "localhost:6379")
	cfg.KafkaServers = env.GetString("KAFKA_SERVERS", "localhost:9092")

	cfg.FileUploader.ApiKey = env.GetString("CLOUDINARY_API_KEY", "")
	cfg.FileUploader.CloudName = env.GetString("CLOUDINARY_CLOUD_NAME", "")
	cfg.FileUploader.ApiSecret = env.GetString("CLOUDINARY_API_SECRET", "")

	cfg.Chain.RpcURL = env.GetString("CHAIN_RPC_URL", "")
	cfg.Chain.DefaultID = env.GetInt64("CHAIN_DEFAULT_ID", 11155111)

	cfg.Contracts.KYCVerifier = env.GetString("CONTRACT_KYC_VERIFIER", "")
	cfg.Contracts.TrustScore = env.GetString("CONTRACT_TRUST_SCORE", "")
	cfg.Contracts.LoanManager = env.GetString("CONTRACT_LOAN_MANAGER", "")

	cfg.Tracker.PollInterval = env.GetDuration("TRACKER_POLL_INTERVAL", tracker.DefaultPollInterval)
	cfg.Tracker.ResumeEvery = env.GetDuration("TRACKER_RESUME_EVERY", time.Minute)

	cfg.Wallet.SessionTTL = env.GetDuration("WALLET_SESSION_TTL", 24*time.Hour)

	cfg.Limiter.Enabled = env.GetBool("LIMITER_ENABLED", true)
	cfg.Limiter.Rps = env.GetFloat("LIMITER_RPS", 2)
	cfg.Limiter.Burst = env.GetInt("LIMITER_BURST", 4)

	cfg.Admin.Email = env.GetString("ADMIN_EMAIL", "")
	cfg.Admin.Password = env.GetString("ADMIN_PASSWORD", "")
	cfg.Admin.Name = env.GetString("ADMIN_NAME", "TrustBond Admin")

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func NewApplication(cfg config.Config, logger *slog.Logger) (*Application, error) {
	db, err := repository.New(cfg.Db.Dsn, cfg.Db.Automigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	mailer, err := smtp.NewMailer(cfg.Smtp.Host, cfg.Smtp.Port, cfg.Smtp.Username, cfg.Smtp.Password, cfg.Smtp.From)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	app := &Application{
		Config:       cfg,
		DB:           db,
		Logger:       logger,
		Mailer:       mailer,
		Kafka:        stream.New(cfg.KafkaServers),
		Cache:        cache.New(cfg.RedisServer, 0),
		FileUploader: file.New(cfg.FileUploader.CloudName, cfg.FileUploader.ApiKey, cfg.FileUploader.ApiSecret),
		Hub:          realtime.NewHub(realtimeBuffer),
	}

	app.errorHandler = errHandler.New(cfg.Notifications.Email, cfg.BaseURL, mailer, logger)
	app.helper = helper.New(&app.Config.BaseURL, &app.WG, app.errorHandler)

	if err := app.initChain(); err != nil {
		return nil, err
	}

	app.Wallets = wallet.NewManager(wallet.NewRedisStore(app.Cache, cfg.Wallet.SessionTTL), logger)
	app.Trust = trust.NewService(app.Contracts, db.Loan(), logger)

	app.Tracker = tracker.New(db.Transaction(), app.Chain, cfg.Tracker.PollInterval, logger)
	app.Tracker.OnSettled(app.publishSettled)

	if err := app.initScheduler(); err != nil {
		return nil, err
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	app.cancelWorkers = cancel

	app.Worker = worker.New(&worker.Worker{
		KafkaStream:  app.Kafka,
		UserRepo:     db.User(),
		ActivityRepo: db.Activity(),
		Mailer:       mailer,
		Ctx:          workerCtx,
		Helper:       app.helper,
	})

	return app, nil
}

// initChain picks the JSON-RPC node, or the simulated chain in demo mode, and
// binds the configured contracts to it.
func (app *Application) initChain() error {
	if app.Config.Mode == config.ModeDemo && app.Config.Chain.RpcURL == "" {
		app.Chain = chain.NewSimulatedClient(app.Config.Chain.DefaultID, demoConfirmationDelay)
		app.Logger.Info("using simulated chain", "chain_id", app.Config.Chain.DefaultID)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := chain.Dial(ctx, app.Config.Chain.RpcURL)
		if err != nil {
			return fmt.Errorf("failed to connect to chain: %w", err)
		}
		app.Chain = client
	}

	contracts, err := chain.NewContracts(app.Chain, chain.ContractAddresses{
		KYCVerifier: app.Config.Contracts.KYCVerifier,
		TrustScore:  app.Config.Contracts.TrustScore,
		LoanManager: app.Config.Contracts.LoanManager,
	})
	if err != nil {
		return fmt.Errorf("failed to bind contracts: %w", err)
	}
	app.Contracts = contracts

	return nil
}

func (app *Application) initScheduler() error {
	scheduler, err := jobs.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	app.Scheduler = scheduler

	sweeper := &jobs.OverdueSweeper{
		Loans:       app.DB.Loan(),
		Logger:      app.Logger,
		OnDefaulted: app.publishDefaulted,
	}

	_, err = jobs.OverdueLoansJob(scheduler, gocron.NewAtTimes(gocron.NewAtTime(0, 15, 0)), sweeper, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to schedule overdue loans job: %w", err)
	}

	_, err = jobs.ResumePendingJob(scheduler, app.Config.Tracker.ResumeEvery, app.Tracker, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to schedule resume job: %w", err)
	}

	return nil
}

// publishSettled fans a settled transaction out to the owner's realtime
// subscribers and the event stream.
func (app *Application) publishSettled(transaction models.BlockchainTransaction) {
	event := stream.NewTransactionEvent(transaction)

	if transaction.UserID.Valid {
		app.Hub.Publish(realtime.Event{
			Type:    realtime.EventTransactionSettled,
			Topic:   realtime.UserTopic(transaction.UserID.String),
			Payload: event,
		})
	}

	if err := app.Kafka.PublishJSON(stream.TransactionSettledTopic, transaction.Hash, event); err != nil {
		app.errorHandler.ReportServerError(nil, err)
	}
}

func (app *Application) publishDefaulted(loan models.Loan) {
	event := stream.NewLoanStatusEvent(loan, "")

	app.Hub.Publish(realtime.Event{
		Type:    realtime.EventLoanUpdated,
		Topic:   realtime.UserTopic(loan.BorrowerID),
		Payload: event,
	})

	if err := app.Kafka.PublishJSON(stream.LoanStatusTopic, loan.ID, event); err != nil {
		app.errorHandler.ReportServerError(nil, err)
	}
}

// Start launches everything that runs beside the HTTP server: the Kafka
// workers, the scheduled jobs and pollers for transactions left pending.
func (app *Application) Start() error {
	app.Worker.Start()
	app.Scheduler.Start()

	resumed, err := app.Tracker.ResumePending()
	if err != nil {
		return fmt.Errorf("failed to resume pending transactions: %w", err)
	}

	app.Logger.Info("background services started", "resumed_transactions", resumed)
	return nil
}
