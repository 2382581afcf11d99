// Package server wires configuration, storage and HTTP handlers into a runnable App.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/supwarden/internal/crypto"
	"github.com/iudanet/supwarden/internal/server/access"
	"github.com/iudanet/supwarden/internal/server/config"
	"github.com/iudanet/supwarden/internal/server/events"
	"github.com/iudanet/supwarden/internal/server/handlers"
	"github.com/iudanet/supwarden/internal/server/identity"
	"github.com/iudanet/supwarden/internal/server/jwt"
	"github.com/iudanet/supwarden/internal/server/middleware"
	"github.com/iudanet/supwarden/internal/server/sensitive"
	"github.com/iudanet/supwarden/internal/server/services"
	"github.com/iudanet/supwarden/internal/server/storage"
	"github.com/iudanet/supwarden/internal/server/storage/blob"
	"github.com/iudanet/supwarden/internal/server/storage/sqldb"
	"github.com/iudanet/supwarden/internal/server/transfer"
)

const healthPath = "/api/v1/health"

// App - собранный сервер со всеми зависимостями
type App struct {
	logger    *slog.Logger
	store     *sqldb.Storage
	blobs     storage.BlobStorage
	publisher events.Publisher
	limiter   *middleware.PathRateLimiter
	handler   http.Handler
	version   string
	cfg       config.Config
}

// New открывает хранилища и собирает handler'ы. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, version string) (app *App, err error) {
	app = &App{cfg: cfg, logger: logger, version: version}
	defer func() {
		if err != nil {
			if closeErr := app.Close(); closeErr != nil {
				logger.Error("failed to release resources", slog.Any("error", closeErr))
			}
			app = nil
		}
	}()

	app.store, err = sqldb.New(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	app.blobs, err = openBlobStore(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob storage: %w", err)
	}

	app.publisher, err = openPublisher(cfg.Events, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect event publisher: %w", err)
	}

	app.handler, err = app.routes()
	if err != nil {
		return nil, err
	}

	return app, nil
}

func openBlobStore(ctx context.Context, cfg config.BlobConfig) (storage.BlobStorage, error) {
	switch cfg.Driver {
	case config.BlobBolt:
		store, err := blob.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BlobS3:
		store, err := blob.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BlobGridFS:
		store, err := blob.NewGridFSStore(ctx, cfg.GridFS)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

func openPublisher(cfg config.EventsConfig, logger *slog.Logger) (events.Publisher, error) {
	switch cfg.Driver {
	case config.EventsNone, "":
		return events.NopPublisher{}, nil
	case config.EventsNATS:
		publisher, err := events.NewNATSPublisher(cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// routes собирает сервисы, handler'ы и цепочку middleware
func (a *App) routes() (http.Handler, error) {
	cfg := a.cfg

	hasher, err := crypto.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}

	keys, err := cfg.EncryptionKeys()
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.NewFieldCipher(cfg.Encryption.KeyVersion, keys)
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewService([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	// без client id вход через Google выключен, verifier остается nil интерфейсом
	var verifier identity.Verifier
	if cfg.Auth.GoogleClientID != "" {
		google, err := identity.NewGoogleVerifier(cfg.Auth.GoogleClientID)
		if err != nil {
			return nil, err
		}
		verifier = google
	}

	policy := access.NewPolicy(access.RequireAcceptedForWrite(cfg.Auth.RequireAcceptedForWrite))

	vaultService := services.NewVaultService(a.store, a.store, a.store, a.blobs, policy, a.publisher, a.logger)
	userService := services.NewUserService(a.store, vaultService, hasher, tokens, verifier, a.logger)
	elementService := services.NewElementService(services.ElementServiceConfig{
		Elements:          a.store,
		Vaults:            a.store,
		Users:             a.store,
		Blobs:             a.blobs,
		Cipher:            cipher,
		Policy:            policy,
		Gate:              sensitive.NewGate(hasher),
		Publisher:         a.publisher,
		Logger:            a.logger,
		MaxAttachmentSize: cfg.Attachments.MaxSize,
	})
	transferService := transfer.NewService(a.store, a.store, a.store, a.blobs, cipher, a.logger)

	health := handlers.NewHealthHandler(a.logger, a.store, a.version)
	auth := handlers.NewAuthHandler(a.logger, userService)
	users := handlers.NewUserHandler(a.logger, userService)
	vaults := handlers.NewVaultHandler(a.logger, vaultService)
	elements := handlers.NewElementHandler(a.logger, elementService, cfg.Attachments.MaxSize)
	transfers := handlers.NewTransferHandler(a.logger, transferService)

	authMW := middleware.AuthMiddleware(a.logger, tokens)
	protected := func(h http.HandlerFunc) http.Handler {
		return authMW(h)
	}

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET "+healthPath, health.Health)
	mux.HandleFunc("POST /api/v1/auth/register", auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", auth.Login)
	mux.HandleFunc("POST /api/v1/auth/google", auth.Google)
	mux.HandleFunc("GET /api/v1/users/by-pseudo/{pseudo}", users.ByPseudo)

	// Users
	mux.Handle("GET /api/v1/users/me", protected(users.Me))
	mux.Handle("PUT /api/v1/users/me", protected(users.UpdateMe))
	mux.Handle("DELETE /api/v1/users/me", protected(users.DeleteMe))
	mux.Handle("PUT /api/v1/users/me/password", protected(users.ChangePassword))
	mux.Handle("PUT /api/v1/users/me/pin", protected(users.SetPIN))
	mux.Handle("POST /api/v1/users/me/verify-pin", protected(users.VerifyPIN))
	mux.Handle("POST /api/v1/users/me/verify-password", protected(users.VerifyPassword))
	mux.Handle("POST /api/v1/users/me/google", protected(users.LinkGoogle))
	mux.Handle("DELETE /api/v1/users/me/google", protected(users.UnlinkGoogle))
	mux.Handle("GET /api/v1/users/{id}", protected(users.PseudoByID))

	// Vaults
	mux.Handle("POST /api/v1/vaults", protected(vaults.Create))
	mux.Handle("GET /api/v1/vaults", protected(vaults.ListOwned))
	mux.Handle("GET /api/v1/vaults/shared", protected(vaults.ListShared))
	mux.Handle("GET /api/v1/vaults/{id}", protected(vaults.Get))
	mux.Handle("PUT /api/v1/vaults/{id}", protected(vaults.Rename))
	mux.Handle("DELETE /api/v1/vaults/{id}", protected(vaults.Delete))
	mux.Handle("POST /api/v1/vaults/{id}/members", protected(vaults.AddMember))
	mux.Handle("PUT /api/v1/vaults/{id}/members/{userID}", protected(vaults.UpdateMember))
	mux.Handle("DELETE /api/v1/vaults/{id}/members/{userID}", protected(vaults.RemoveMember))
	mux.Handle("POST /api/v1/vaults/{id}/invitation/accept", protected(vaults.Accept))
	mux.Handle("POST /api/v1/vaults/{id}/invitation/refuse", protected(vaults.Refuse))

	// Elements
	mux.Handle("GET /api/v1/vaults/{id}/elements", protected(elements.List))
	mux.Handle("POST /api/v1/vaults/{id}/elements", protected(elements.Create))
	mux.Handle("GET /api/v1/elements/{id}", protected(elements.Get))
	mux.Handle("PUT /api/v1/elements/{id}", protected(elements.Update))
	mux.Handle("DELETE /api/v1/elements/{id}", protected(elements.Delete))
	mux.Handle("GET /api/v1/elements/{id}/challenge", protected(elements.Challenge))
	mux.Handle("POST /api/v1/elements/{id}/reveal", protected(elements.Reveal))
	mux.Handle("POST /api/v1/elements/{id}/attachments", protected(elements.UploadAttachment))
	mux.Handle("GET /api/v1/elements/{id}/attachments/{attachmentID}", protected(elements.DownloadAttachment))
	mux.Handle("DELETE /api/v1/elements/{id}/attachments/{attachmentID}", protected(elements.DeleteAttachment))

	// Transfer
	mux.Handle("GET /api/v1/transfer/export", protected(transfers.Export))
	mux.Handle("POST /api/v1/transfer/import", protected(transfers.Import))

	clientIP, err := middleware.NewClientIP(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return nil, err
	}

	strict := func(pattern string) middleware.PathRateLimit {
		return middleware.PathRateLimit{
			Pattern:  pattern,
			Requests: cfg.RateLimit.StrictRequests,
			Window:   cfg.RateLimit.StrictWindow,
		}
	}
	a.limiter = middleware.NewPathRateLimiter([]middleware.PathRateLimit{
		strict("/api/v1/auth/*"),
		strict("/api/v1/users/me/verify-pin"),
		strict("/api/v1/users/me/verify-password"),
		strict("/api/v1/elements/*/reveal"),
	}, cfg.RateLimit.Requests, cfg.RateLimit.Window, clientIP, a.logger)

	return middleware.Chain(mux,
		middleware.RecoveryMiddleware(a.logger),
		middleware.LoggingWithSkip(a.logger, []string{healthPath}),
		a.limiter.Middleware(a.logger),
		middleware.TimeoutMiddleware(cfg.Server.RequestTimeout),
	), nil
}

// Handler returns the root HTTP handler
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run слушает cfg.Server.Address до отмены ctx
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.Address, err)
	}
	return a.Serve(ctx, ln)
}

// Serve обслуживает ln до отмены ctx, затем выполняет graceful shutdown
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      a.handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(a.logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Server started", slog.String("address", ln.Addr().String()), slog.String("version", a.version))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close освобождает хранилища и соединения
func (a *App) Close() error {
	var errs []error

	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("blob storage: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	return errors.Join(errs...)
}
