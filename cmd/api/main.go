package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pravesh-commerce/api/internal/di"
	"github.com/pravesh-commerce/api/internal/handlers"
	"github.com/pravesh-commerce/api/internal/platform/auth"
	"github.com/pravesh-commerce/api/internal/platform/cache"
	"github.com/pravesh-commerce/api/internal/platform/config"
	pfirestore "github.com/pravesh-commerce/api/internal/platform/firestore"
	"github.com/pravesh-commerce/api/internal/platform/idempotency"
	"github.com/pravesh-commerce/api/internal/platform/jobs"
	"github.com/pravesh-commerce/api/internal/platform/observability"
	"github.com/pravesh-commerce/api/internal/platform/secrets"
	"github.com/pravesh-commerce/api/internal/repositories"
	firestoreRepo "github.com/pravesh-commerce/api/internal/repositories/firestore"
	"github.com/pravesh-commerce/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	var cacheClient cache.Client
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable; falling back to in-process cache", zap.Error(err))
		cacheClient = cache.NewMemoryClient()
	} else {
		cacheClient = redisClient
	}
	defer func() {
		if err := cacheClient.Close(); err != nil {
			logger.Warn("cache close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider,
		firestoreRepo.WithHealthChecks(
			firestoreRepo.CacheCheck(cacheClient),
			secretManagerCheck(fetcher),
		),
	)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	var orderEvents services.OrderEventPublisher
	if projectID := strings.TrimSpace(cfg.PubSub.ProjectID); projectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, projectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		topic := pubsubClient.Topic(cfg.PubSub.OrderTopic)
		defer func() {
			topic.Stop()
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		publisher, err := jobs.NewPubSubOrderPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		orderEvents = publisher
	} else {
		logger.Warn("pubsub project not configured; order events disabled")
	}

	container, err := di.NewContainer(ctx, cfg, di.Dependencies{
		Registry: registry,
		Cache:    cacheClient,
		Events:   orderEvents,
		Build:    buildInfo,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)
	catalogHandlers := handlers.NewCatalogHandlers(container.Services.Catalog)
	cartHandlers := handlers.NewCartHandlers(authenticator, container.Services.Carts)
	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, container.Services.Checkout)
	orderHandlers := handlers.NewOrderHandlers(authenticator, container.Services.Orders)
	walletHandlers := handlers.NewWalletHandlers(authenticator, container.Services.Wallets)
	reviewHandlers := handlers.NewReviewHandlers(authenticator, container.Services.Reviews)
	adminCatalogHandlers := handlers.NewAdminCatalogHandlers(authenticator, container.Services.Catalog)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(authenticator, container.Services.Orders, container.Services.Wallets)
	internalOpsHandlers := handlers.NewInternalOpsHandlers(container.Services.Counters, cacheClient)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithProductRoutes(catalogHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithCheckoutMiddlewares(idempotencyMiddleware),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithWalletRoutes(walletHandlers.Routes),
		handlers.WithReviewRoutes(reviewHandlers.Routes),
		handlers.WithAdminRoutes(func(r chi.Router) {
			adminCatalogHandlers.Routes(r)
			adminOrderHandlers.Routes(r)
		}),
	}
	if oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg); oidcMiddleware != nil {
		opts = append(opts,
			handlers.WithInternalRoutes(internalOpsHandlers.Routes),
			handlers.WithInternalMiddlewares(oidcMiddleware),
		)
	} else {
		logger.Warn("auth: OIDC not configured; internal routes disabled")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("commerce api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

// secretManagerCheck probes Secret Manager reachability. A NotFound response
// still proves the service answered, so it passes the check.
func secretManagerCheck(fetcher *secrets.Fetcher) repositories.DependencyCheck {
	const healthReference = "secret://system/healthz?version=latest"
	return repositories.DependencyCheck{
		Name:    "secretManager",
		Timeout: time.Second,
		Check: func(ctx context.Context) error {
			_, err := fetcher.Resolve(ctx, healthReference)
			if err == nil {
				return nil
			}
			if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
				return nil
			}
			return err
		},
	}
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	adapter := observability.NewPrintfAdapter(logger)
	jwksCache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewOIDCValidator(jwksCache, auth.WithOIDCLogger(adapter))

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	issuers := cfg.Security.OIDC.Issuers
	if len(issuers) == 0 {
		logger.Warn("auth: OIDC issuers not configured; internal routes will reject requests")
	}

	return validator.RequireOIDC(audience, issuers)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	projectMap := secretProjectMapFromEnv(env)
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists configuration fields that must resolve from Secret
// Manager. Only the Redis password is secret-backed, and only when the
// environment actually references a secret URI.
func requiredSecretNames(env map[string]string) []string {
	raw := ""
	if env != nil {
		raw = strings.TrimSpace(env["API_REDIS_PASSWORD"])
	}
	if strings.HasPrefix(raw, "sm://") || strings.HasPrefix(raw, "secret://") {
		return []string{"Redis.Password"}
	}
	return nil
}

func secretProjectMapFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["API_SECRET_PROJECT_IDS"]
	}
	raw = strings.TrimSpace(raw)
	projects := make(map[string]string)
	if raw == "" {
		return projects
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		envLabel := strings.ToLower(strings.TrimSpace(parts[0]))
		project := strings.TrimSpace(parts[1])
		if envLabel == "" || project == "" {
			continue
		}
		projects[envLabel] = project
	}
	return projects
}
