package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/ilmarik/fitcoach/internal/ai"
	"github.com/ilmarik/fitcoach/internal/booking"
	"github.com/ilmarik/fitcoach/internal/envstruct"
	"github.com/ilmarik/fitcoach/internal/errors"
	"github.com/ilmarik/fitcoach/internal/logging"
	"github.com/ilmarik/fitcoach/internal/notify"
	"github.com/ilmarik/fitcoach/internal/split"
	"github.com/ilmarik/fitcoach/internal/sqlite"
)

type application struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	db             *sqlite.Database
	jwtSecret      []byte
	splitService   *split.Service
	bookingService *booking.Service
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"FITCOACH_ADDR" envDefault:"localhost:8081"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"FITCOACH_SQLITE_URL" envDefault:"./fitcoach.sqlite3"`
	// AuthJWTSecret is the shared HMAC secret used to verify identity tokens posted to /api/session.
	AuthJWTSecret string `env:"FITCOACH_AUTH_JWT_SECRET"`
	// OpenAIAPIKey enables model-backed split refinement. Empty falls back to a local heuristic.
	OpenAIAPIKey string `env:"FITCOACH_OPENAI_API_KEY" envDefault:""`
	// ResendAPIKey enables booking emails through Resend. Empty drops emails.
	ResendAPIKey string `env:"FITCOACH_RESEND_API_KEY" envDefault:""`
	// EmailFrom is the sender address for booking emails.
	EmailFrom string `env:"FITCOACH_EMAIL_FROM" envDefault:"FitCoach <noreply@fitcoach.example>"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	sessionManager := initializeSessionManager(db)

	var sender notify.Sender = notify.NoopSender{Logger: logger}
	if cfg.ResendAPIKey != "" {
		sender = notify.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
	}
	notifier := notify.NewEmailNotifier(db, sender, logger)

	app := application{
		logger:         logger,
		sessionManager: sessionManager,
		db:             db,
		jwtSecret:      []byte(cfg.AuthJWTSecret),
		splitService:   split.NewService(db, logger, ai.NewRefiner(cfg.OpenAIAPIKey, logger)),
		bookingService: booking.NewService(db, logger, notifier),
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr, app.routes()); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func initializeSessionManager(dbs *sqlite.Database) *scs.SessionManager {
	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(dbs.ReadWrite, 24*time.Hour) //nolint:mnd // day
	sessionManager.Lifetime = 12 * time.Hour                                                //nolint:mnd // half a day
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.Secure = true
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteStrictMode
	return sessionManager
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
