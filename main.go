package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crosspost/domain/repository"
	"crosspost/infrastructure/cache"
	"crosspost/infrastructure/clients/instagram"
	"crosspost/infrastructure/clients/platformhttp"
	"crosspost/infrastructure/clients/tiktok"
	"crosspost/infrastructure/clients/youtube"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/persistence"
	"crosspost/infrastructure/pubsub"
	"crosspost/infrastructure/realtime"
	"crosspost/infrastructure/servicebus"
	"crosspost/infrastructure/storage"
	httpHandler "crosspost/interfaces/http"
	"crosspost/server"
	"crosspost/usecase"

	"golang.org/x/sync/errgroup"
)

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

// repositories is the primary store, either PostgreSQL or SQL Server.
type repositories struct {
	db          *sql.DB
	connections repository.IConnection
	states      repository.IOAuthState
	videos      repository.IVideo
	posts       repository.IPost
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")
	configuration.Reload()
	cfg := configuration.C

	repos, err := initiateDatabase(cfg.Database.Vendor)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Database initialization failed")
	}
	defer repos.db.Close()
	logger.GetLogger().WithField("vendor", cfg.Database.Vendor).Info("Database connected.")

	states := repos.states
	var checks []httpHandler.Check
	checks = append(checks, httpHandler.Check{Name: "database", Ping: repos.db.PingContext})
	if cfg.OAuth.StateStore == "redis" {
		redisClient, err := cache.NewCache(
			ctx,
			fmt.Sprintf("%s:%s", cfg.RedisClient.Host, cfg.RedisClient.Port),
			cfg.RedisClient.Username,
			cfg.RedisClient.Password,
			cfg.RedisClient.DatabaseName,
		)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Redis not available - keeping OAuth states in the database")
		} else {
			defer redisClient.Close()
			states = cache.NewOAuthStateCache(redisClient)
			checks = append(checks, httpHandler.Check{Name: "redis", Ping: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}})
			logger.GetLogger().Info("Redis client initialized successfully.")
		}
	}

	videoStorage, err := storage.NewMinIOStorage(
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.Bucket,
		cfg.Storage.Region,
		cfg.Storage.UseSSL,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Fatal("Object storage initialization failed")
	}

	vendorClient := platformhttp.NewClient(cfg.Publish.VendorTimeout())
	uploadClient := platformhttp.NewClient(cfg.Publish.UploadTimeout())

	ytConfig := configuration.GetPlatformOAuthConfig("youtube")
	youtubeClient := youtube.NewYouTubeClient(youtube.Config{
		ClientID:     ytConfig.ClientID,
		ClientSecret: ytConfig.ClientSecret,
		RedirectURL:  ytConfig.RedirectURL,
		Scopes:       ytConfig.Scopes,
		HTTPClient:   vendorClient,
		UploadClient: uploadClient,
	})
	ttConfig := configuration.GetPlatformOAuthConfig("tiktok")
	tiktokClient := tiktok.NewTikTokClient(tiktok.Config{
		ClientKey:    ttConfig.ClientID,
		ClientSecret: ttConfig.ClientSecret,
		RedirectURL:  ttConfig.RedirectURL,
		Scopes:       ttConfig.Scopes,
		HTTPClient:   vendorClient,
		UploadClient: uploadClient,
	})
	igConfig := configuration.GetPlatformOAuthConfig("instagram")
	instagramClient := instagram.NewInstagramClient(instagram.Config{
		ClientID:     igConfig.ClientID,
		ClientSecret: igConfig.ClientSecret,
		RedirectURL:  igConfig.RedirectURL,
		Scopes:       igConfig.Scopes,
		HTTPClient:   vendorClient,
		PollInterval: cfg.Publish.InstagramPollInterval(),
		PollAttempts: cfg.Publish.InstagramPollAttempts,
	})
	for _, c := range []repository.IPlatformOAuth{youtubeClient, tiktokClient, instagramClient} {
		logger.GetLogger().WithField("platform", c.Platform()).WithField("configured", c.Configured()).Info("Platform client ready")
	}

	connectionUsecase := usecase.NewConnectionUsecase(repos.connections, states, cfg.OAuth.StateTTL(),
		youtubeClient, tiktokClient, instagramClient)
	videoUsecase := usecase.NewVideoUsecase(repos.videos, videoStorage, cfg.Storage.MaxUploadBytes)
	accountUsecase := usecase.NewAccountUsecase(repos.connections, connectionUsecase, repos.videos, repos.posts, videoStorage)

	postHub := realtime.NewPostHub()
	postUsecase := usecase.NewPostUsecase(repos.videos, repos.posts, repos.connections, connectionUsecase, videoStorage,
		usecase.PostUsecaseConfig{PublishTimeout: cfg.Publish.Timeout(), SignedURLTTL: cfg.Storage.SignedURLTTL()},
		youtubeClient, tiktokClient, instagramClient,
	).WithEvents(postHub)

	if cfg.Database.MySql.Host != "" {
		auditDB, err := persistence.NewRepositories()
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Audit database not available - continuing without audit trail")
		} else {
			audit := persistence.NewPostAuditRepository(auditDB)
			if err := audit.Migrate(); err != nil {
				logger.GetLogger().WithField("error", err).Error("failed migrating post audit schema")
			}
			postUsecase.WithAudit(audit)
		}
	}

	if cfg.Events.PubsubProjectID != "" {
		pubSubClient, err := pubsub.NewPubSub(ctx, cfg.Events.PubsubProjectID)
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while instantiate PubSub")
		} else {
			defer pubSubClient.Close()
			topic, err := pubsub.NewPostEventTopic(ctx, pubSubClient, cfg.Events.PubsubTopic)
			if err != nil {
				logger.GetLogger().WithField("error", err).Error("Error while resolving PubSub topic")
			} else {
				defer topic.Stop()
				postUsecase.WithEvents(topic)
			}
		}
	}

	if cfg.Events.ServiceBusNamespace != "" {
		sbClient, err := servicebus.NewServiceBus(cfg.Events.ServiceBusNamespace)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without Service Bus events")
		} else {
			defer sbClient.Close(context.Background())
			queue, err := servicebus.NewPostEventQueue(sbClient, cfg.Events.ServiceBusQueue)
			if err == nil {
				defer queue.Close(context.Background())
				postUsecase.WithEvents(queue)
			}
		}
	}

	router := server.InitiateRouter(
		server.Options{
			SecretKey:          cfg.App.SecretKey,
			AllowedOrigins:     cfg.App.AllowedOrigins,
			RateLimitPerMinute: cfg.Publish.RateLimitPerMinute,
			RateLimitBurst:     cfg.Publish.RateLimitBurst,
		},
		httpHandler.NewConnectionHandler(connectionUsecase, configuration.DashboardURL(cfg.App.BaseURL)),
		httpHandler.NewPostHandler(postUsecase),
		httpHandler.NewVideoHandler(videoUsecase, cfg.Storage.MaxUploadBytes),
		httpHandler.NewAccountHandler(accountUsecase),
		httpHandler.NewHealthHandler(checks...),
		postHub,
	)

	app := cfg.App
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.GetLogger().WithFields(map[string]interface{}{"port": app.Port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		var err error
		if app.TLSEnabled && app.TLSCertFile != "" && app.TLSKeyFile != "" {
			err = httpServer.ListenAndServeTLS(app.TLSCertFile, app.TLSKeyFile)
		} else {
			if app.TLSEnabled {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
			}
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// initiateDatabase opens the primary store for vendor and ensures its schema.
func initiateDatabase(vendor string) (*repositories, error) {
	if vendor == "mssql" {
		db, err := persistence.NewMSSQLDB()
		if err != nil {
			return nil, err
		}
		if err := persistence.EnsureSchemaMSSQL(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &repositories{
			db:          db,
			connections: persistence.NewConnectionRepositoryMSSQL(db),
			states:      persistence.NewOAuthStateRepositoryMSSQL(db),
			videos:      persistence.NewVideoRepositoryMSSQL(db),
			posts:       persistence.NewPostRepositoryMSSQL(db),
		}, nil
	}

	db, err := persistence.NewPostgreSQLDB()
	if err != nil {
		return nil, err
	}
	if err := persistence.EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &repositories{
		db:          db,
		connections: persistence.NewConnectionRepository(db),
		states:      persistence.NewOAuthStateRepository(db),
		videos:      persistence.NewVideoRepository(db),
		posts:       persistence.NewPostRepository(db),
	}, nil
}
