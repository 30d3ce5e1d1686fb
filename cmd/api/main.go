package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/duka-pos/api/internal/handlers"
	"github.com/duka-pos/api/internal/platform/auth"
	"github.com/duka-pos/api/internal/platform/config"
	pfirestore "github.com/duka-pos/api/internal/platform/firestore"
	"github.com/duka-pos/api/internal/platform/jobs"
	"github.com/duka-pos/api/internal/platform/observability"
	"github.com/duka-pos/api/internal/platform/secrets"
	platformstorage "github.com/duka-pos/api/internal/platform/storage"
	"github.com/duka-pos/api/internal/repositories"
	firestoreRepo "github.com/duka-pos/api/internal/repositories/firestore"
	"github.com/duka-pos/api/internal/services"
)

func main() {
	ctx := context.Background()

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

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	var (
		pubsubClient  *pubsub.Client
		saleTopic     *pubsub.Topic
		lowStockTopic *pubsub.Topic
		events        services.EventPublisher
	)
	if strings.TrimSpace(cfg.Jobs.ProjectID) != "" {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.Jobs.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		saleTopic = pubsubClient.Topic(cfg.Jobs.SaleCompletedTopic)
		if cfg.Features.EnableLowStockAlerts {
			lowStockTopic = pubsubClient.Topic(cfg.Jobs.LowStockTopic)
		}
		publisher, err := jobs.NewPubSubEventPublisher(saleTopic, lowStockTopic)
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
		events = publisher
	} else {
		logger.Warn("jobs project not configured; sale events will not be published")
	}

	var exportStore *platformstorage.ExportStore
	if cfg.Features.EnableSalesExports {
		storageClient, err := cloudstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("failed to initialise storage client", zap.Error(err))
		}
		defer func() {
			if err := storageClient.Close(); err != nil {
				logger.Warn("storage close error", zap.Error(err))
			}
		}()

		exportStore, err = platformstorage.NewExportStore(
			storageClient,
			cfg.Storage.ExportsBucket,
			cfg.Storage.SignedURLAccessID,
			[]byte(cfg.Storage.SignedURLKey),
			platformstorage.WithSignedURLTTL(cfg.Storage.SignedURLTTL),
		)
		if err != nil {
			logger.Fatal("failed to initialise export store", zap.Error(err))
		}
		if strings.TrimSpace(cfg.Storage.SignedURLAccessID) == "" {
			logger.Warn("storage signer not configured; export downloads will omit signed urls")
		}
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	shopService, err := services.NewShopService(services.ShopServiceDeps{
		Shops: registry.Shops(),
	})
	if err != nil {
		logger.Fatal("failed to initialise shop service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:          registry.Products(),
		Categories:        registry.Categories(),
		LowStockThreshold: cfg.Sales.LowStockThreshold,
		Clock:             time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	customerService, err := services.NewCustomerService(services.CustomerServiceDeps{
		Customers: registry.Customers(),
		Clock:     time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise customer service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Products:          registry.Products(),
		Customers:         registry.Customers(),
		Checkout:          registry.Checkout(),
		Events:            events,
		TaxRate:           cfg.Sales.TaxRate,
		LowStockThreshold: cfg.Sales.LowStockThreshold,
		Clock:             time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	salesDeps := services.SalesServiceDeps{
		Transactions: registry.Transactions(),
		Currency:     cfg.Sales.Currency,
		Clock:        time.Now,
	}
	if exportStore != nil {
		salesDeps.Exports = exportStore
	}
	salesService, err := services.NewSalesService(salesDeps)
	if err != nil {
		logger.Fatal("failed to initialise sales service", zap.Error(err))
	}

	systemService, err := newSystemService(ctx, registry, firestoreClient, fetcher, saleTopic)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthSystemService(systemService),
	)

	productHandlers := handlers.NewProductHandlers(shopService, catalogService)
	categoryHandlers := handlers.NewCategoryHandlers(shopService, catalogService)
	customerHandlers := handlers.NewCustomerHandlers(shopService, customerService)
	checkoutHandlers := handlers.NewCheckoutHandlers(shopService, checkoutService)
	transactionHandlers := handlers.NewTransactionHandlers(shopService, salesService)

	checkoutLimit := handlers.RateLimit(cfg.RateLimits.CheckoutPerMinute, time.Minute)
	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithShopMiddlewares(
			authenticator.RequireFirebaseAuth(),
			handlers.RateLimit(cfg.RateLimits.DefaultPerMinute, time.Minute),
		),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithCategoryRoutes(categoryHandlers.Routes),
		handlers.WithCustomerRoutes(customerHandlers.Routes),
		handlers.WithCheckoutRoutes(func(r chi.Router) {
			r.Use(checkoutLimit)
			checkoutHandlers.Routes(r)
		}),
		handlers.WithTransactionRoutes(transactionHandlers.Routes),
	)

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
		serverLogger.Info("duka-pos api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSystemService(ctx context.Context, registry *firestoreRepo.Registry, client *firestore.Client, fetcher *secrets.Fetcher, saleTopic *pubsub.Topic) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 3)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if saleTopic != nil {
		topic := saleTopic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: 2 * time.Second,
			Check: func(ctx context.Context) error {
				exists, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s does not exist", topic.ID())
				}
				return nil
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok {
					switch st.Code() {
					case codes.NotFound:
						return nil
					}
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	registry.SetHealth(repo)
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
	})
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

	envLabel := strings.ToLower(lookup("POS_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	projectMap := secretProjectMapFromEnv(env)
	defaultProject := lookup("POS_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("POS_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("POS_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("POS_FIREBASE_CREDENTIALS_FILE")

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

// requiredSecretNames lists config secrets that must resolve before startup.
// The storage signing key is only mandatory when the deployment references it.
func requiredSecretNames(env map[string]string) []string {
	if env == nil {
		return nil
	}
	var required []string
	if key := strings.TrimSpace(env["POS_STORAGE_SIGNING_KEY"]); key != "" {
		required = append(required, "Storage.SignedURLKey")
	}
	return required
}

func secretProjectMapFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["POS_SECRET_PROJECT_IDS"]
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
