package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"net/smtp"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	accounts "github.com/userkit/go-accounts"
	"github.com/userkit/go-accounts/middleware/csrf"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zl, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()

	logger := zapLogger{s: zl.Sugar()}

	cfg, err := accounts.NewAppConfig()
	if err != nil {
		logger.Error("load config: %v", err)
		return
	}

	repo, err := setupPersistence(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup persistence: %v", err)
		return
	}

	tokens := accounts.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetAccessTokenTTL(),
		cfg.GetRefreshTokenTTL(),
		cfg.GetIssuer(),
		jwt.ClaimStrings(cfg.GetAudience()),
		logger,
	)

	mailer, err := setupMailer(cfg, logger)
	if err != nil {
		logger.Error("setup mailer: %v", err)
		return
	}

	images, err := setupImageStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup image store: %v", err)
		return
	}

	dispatcher := accounts.NewDispatcher().WithLogger(logger)
	accounts.RegisterSagas(dispatcher, repo, mailer, logger)

	app := fiber.New(fiber.Config{
		AppName:      "accountsd",
		ErrorHandler: accounts.NewErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(csrf.New(csrf.Config{
		SecureKey:    []byte(cfg.Auth.CSRFKey),
		ErrorHandler: csrfError,
	}))
	csrf.RegisterRoutes(app)

	controller := accounts.NewAPIController(cfg, repo, tokens, dispatcher, images).
		WithLogger(logger).
		WithDebug(cfg.Database.Debug)
	controller.RegisterRoutes(app)

	go func() {
		if err := app.Listen(cfg.Server.Address); err != nil {
			logger.Error("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if err := app.ShutdownWithTimeout(timeout); err != nil {
		logger.Error("shutdown: %v", err)
	}
}

// csrfError returns rich errors so the app level handler renders CSRF
// failures with the same JSON body as every other request error.
func csrfError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, csrf.ErrTokenMissing):
		return goerrors.Wrap(err, goerrors.CategoryBadInput, csrf.ErrTokenMissing.Error()).
			WithCode(goerrors.CodeBadRequest)
	case errors.Is(err, csrf.ErrTokenMismatch), errors.Is(err, csrf.ErrTokenExpired):
		return goerrors.Wrap(err, goerrors.CategoryAuthz, err.Error()).
			WithCode(goerrors.CodeForbidden)
	default:
		return goerrors.Wrap(err, goerrors.CategoryInternal, "CSRF validation failed").
			WithCode(goerrors.CodeInternal)
	}
}

func setupPersistence(ctx context.Context, cfg *accounts.AppConfig, logger accounts.Logger) (accounts.RepositoryManager, error) {
	db, err := sql.Open(sqliteshim.ShimName, cfg.GetPersistence().GetDSN())
	if err != nil {
		return nil, err
	}

	persistence.RegisterModel((*accounts.Account)(nil))
	persistence.RegisterModel((*accounts.Profile)(nil))

	client, err := persistence.New(cfg.GetPersistence(), db, sqlitedialect.New())
	if err != nil {
		return nil, err
	}

	client.SetLogger(logger)

	migrationsFS, err := fs.Sub(accounts.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, err
	}

	repo := accounts.NewRepositoryManager(client.DB())
	if err := repo.Validate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// setupMailer selects the SMTP relay when one is configured and falls back
// to logging delivery links otherwise.
func setupMailer(cfg *accounts.AppConfig, logger accounts.Logger) (accounts.Mailer, error) {
	if cfg.SMTP.Host == "" {
		logger.Warn("no SMTP host configured, delivery links will be logged")
		return accounts.NewLogMailer(logger), nil
	}

	renderer, err := accounts.NewMailRenderer(cfg.AppURL)
	if err != nil {
		return nil, err
	}

	var auth smtp.Auth
	if cfg.SMTP.Username != "" {
		auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)
	}

	return accounts.NewSMTPMailer(cfg.SMTPAddr(), cfg.SMTP.From, auth, renderer).
		WithLogger(logger), nil
}

// setupImageStore returns a nil store when no object storage endpoint is
// configured, which disables profile picture uploads.
func setupImageStore(ctx context.Context, cfg *accounts.AppConfig, logger accounts.Logger) (accounts.ImageStore, error) {
	if cfg.Storage.Endpoint == "" {
		logger.Warn("no object storage configured, profile picture uploads are disabled")
		return nil, nil
	}

	mc, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return accounts.NewMinioImageStore(ctx, mc, cfg.Storage.Bucket, cfg.Storage.PublicURL)
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(format string, args ...any) { l.s.Debugf(format, args...) }
func (l zapLogger) Info(format string, args ...any)  { l.s.Infof(format, args...) }
func (l zapLogger) Warn(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l zapLogger) Error(format string, args ...any) { l.s.Errorf(format, args...) }
