// Package server wires the configured backends together and runs the HTTP
// API with the token sweeper until the process is signalled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/saraha/internal/cryptox"
	"github.com/dmitrijs2005/saraha/internal/dbx"
	"github.com/dmitrijs2005/saraha/internal/logging"
	"github.com/dmitrijs2005/saraha/internal/server/auth"
	"github.com/dmitrijs2005/saraha/internal/server/config"
	"github.com/dmitrijs2005/saraha/internal/server/events"
	"github.com/dmitrijs2005/saraha/internal/server/httpserver"
	"github.com/dmitrijs2005/saraha/internal/server/identity"
	"github.com/dmitrijs2005/saraha/internal/server/mailer"
	"github.com/dmitrijs2005/saraha/internal/server/ratelimit"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/saraha/internal/server/services"
	"github.com/dmitrijs2005/saraha/internal/server/storage"
	"github.com/dmitrijs2005/saraha/internal/server/sweeper"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	auth     *services.AuthService
	users    *services.UserService
	messages *services.MessageService
	limiter  ratelimit.Limiter
	redis    *redis.Client
	sweeper  *sweeper.Sweeper
	closers  []func() error
}

// Backends opens the database and builds the dependencies shared by the
// server and the admin tool.
func Backends(ctx context.Context, c *config.Config, logger logging.Logger) (services.Deps, *sql.DB, error) {
	d := services.Deps{Log: logger, Now: time.Now}

	if c.DatabaseDSN == config.MemoryDSN {
		d.Repos = repomanager.NewMemoryRepositoryManager()
		d.Tx = dbx.NewLockingTransactor()
		return d, nil, nil
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return d, nil, fmt.Errorf("db init error: %w", err)
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return d, nil, fmt.Errorf("migrations error: %w", err)
	}
	d.DB = db
	d.Repos = rm
	d.Tx = dbx.NewSQLTransactor(db)
	return d, db, nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, err
	}

	d, db, err := Backends(ctx, c, logger)
	if err != nil {
		return nil, err
	}
	app := &App{config: c, logger: logger}
	if db != nil {
		app.closers = append(app.closers, db.Close)
	}

	if d.Hasher, err = cryptox.NewHasher(c.PasswordHasher, c.BcryptCost); err != nil {
		app.close()
		return nil, err
	}
	d.Issuer = auth.NewIssuer([]byte(c.SecretKey))
	d.Mailer = app.newMailer()
	d.Verifier = identity.NewGoogleVerifier(c.GoogleClientID)

	if d.Store, err = app.newStore(ctx); err != nil {
		app.close()
		return nil, err
	}

	if len(c.KafkaBrokers) > 0 {
		p := events.NewKafkaPublisher(c.KafkaBrokers, c.KafkaTopic)
		app.closers = append(app.closers, p.Close)
		d.Events = p
	} else {
		d.Events = events.Nop{}
	}

	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		app.closers = append(app.closers, app.redis.Close)
		app.limiter = ratelimit.NewRedisLimiter(app.redis, "saraha:auth", c.RateLimitRequests, c.RateLimitWindow)
	} else {
		app.limiter = ratelimit.NewLocalLimiter(c.RateLimitRequests, c.RateLimitWindow)
	}

	app.auth = services.NewAuthService(d, c)
	app.users = services.NewUserService(d, c)
	app.messages = services.NewMessageService(d)
	app.sweeper = sweeper.New(d.Repos.Tokens(d.DB), c.SweepInterval, logger)

	return app, nil
}

func (app *App) newMailer() mailer.Mailer {
	var m mailer.Mailer
	if app.config.SMTPHost == "" {
		m = mailer.NewLogMailer(app.logger)
	} else {
		m = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     app.config.SMTPHost,
			Port:     app.config.SMTPPort,
			Username: app.config.SMTPUser,
			Password: app.config.SMTPPassword,
			From:     app.config.MailFrom,
		})
	}
	return mailer.NewBreakerMailer(m, app.config.MailTimeout, app.logger)
}

func (app *App) newStore(ctx context.Context) (storage.Store, error) {
	c := app.config
	if c.StorageBackend == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			PresignTTL:   time.Hour,
		})
	}
	return storage.NewLocalStore(c.UploadDir, c.PublicBaseURL)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	opts := []httpserver.Option{httpserver.WithRateLimiter(app.limiter)}
	if app.config.StorageBackend == "local" {
		opts = append(opts, httpserver.WithUploads(app.config.UploadDir))
	}

	s := httpserver.NewHTTPServer(app.config.HTTPAddr, app.logger, app.auth, app.users, app.messages, opts...)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// cleanupLimiter drops idle in-process buckets; Redis keys expire on their own.
func (app *App) cleanupLimiter(ctx context.Context) {
	local, ok := app.limiter.(*ratelimit.LocalLimiter)
	if !ok {
		return
	}
	t := time.NewTicker(app.config.RateLimitWindow)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			local.Cleanup()
		}
	}
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.HTTPAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		app.cleanupLimiter(ctx)
	}()

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}
