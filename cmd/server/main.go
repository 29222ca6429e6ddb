package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-blog-cms/internal/auth"
	"go-blog-cms/internal/cache"
	"go-blog-cms/internal/config"
	"go-blog-cms/internal/data"
	"go-blog-cms/internal/gateway"
	"go-blog-cms/internal/handler"
	"go-blog-cms/internal/logger"
	"go-blog-cms/internal/middleware"
	"go-blog-cms/internal/realtime"
	"go-blog-cms/internal/session"
	"go-blog-cms/internal/storage"
	"go-blog-cms/internal/view"
	"go-blog-cms/web"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig()
	if err != nil {
		// Use fmt.Printf here because the logger is not yet initialized.
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Initialization ---
	log := logger.New(cfg.Log, os.Stdout)

	// --- Pre-flight Checks ---
	if cfg.Session.SecretKey == "" || cfg.Session.SecretKey == "CHANGE_ME_IN_PRODUCTION_SECRET!!" {
		log.Fatal(errors.New("session secret key not set"), "Please set a secure BLOG_SESSION_SECRETKEY environment variable.")
	}

	// --- Database Initialization and Migration ---
	log.Info("Applying database migrations...")
	if err := data.ApplyMigrations(cfg.DB.DSN, "migrations"); err != nil {
		log.Fatal(err, "Failed to apply migrations")
	}
	log.Info("Migrations applied successfully.")

	log.Info("Connecting to the database...")
	db, err := data.NewDB(cfg.DB.DSN)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	log.Info("Database connection successful.")

	// --- Session Management Setup ---
	sessionManager := scs.New()
	switch cfg.Session.Store {
	case "sqlite":
		sessionDB, err := sql.Open("sqlite3", cfg.Session.FilePath)
		if err != nil {
			log.Fatal(err, "Failed to open sqlite session store")
		}
		defer sessionDB.Close()
		sessionManager.Store = sqlite3store.New(sessionDB)
	default:
		sessionManager.Store = mysqlstore.New(db.DB)
	}
	sessionManager.Lifetime = time.Duration(cfg.Session.Lifetime) * time.Hour
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	sessionManager.Cookie.Secure = cfg.Server.TLS.Enabled

	// --- Authentication and Authorization Setup ---
	log.Info("Initializing authentication and authorization...")
	authenticator, err := auth.NewAuthenticator(&cfg.OIDC)
	if err != nil {
		log.Fatal(err, "Failed to initialize authenticator")
	}
	enforcer, err := auth.NewEnforcer("mysql", cfg.DB.DSN, "auth_model.conf")
	if err != nil {
		log.Fatal(err, "Failed to initialize enforcer")
	}
	auth.SeedDefaultPolicies(enforcer, log)
	log.Info("Auth components initialized and policies seeded.")

	// --- View Template Initialization ---
	log.Info("Initializing view templates...")
	viewService, err := view.New(web.TemplateFS)
	if err != nil {
		log.Fatal(err, "Failed to initialize view templates")
	}
	log.Info("View templates initialized.")

	// --- Page Cache Initialization ---
	log.Info("Initializing SQLite page cache...")
	pageCache, err := cache.New(cfg.Cache.FilePath)
	if err != nil {
		log.Fatal(err, "Failed to initialize cache")
	}
	defer pageCache.Close()
	log.Info("Cache initialized.")

	// --- Backend Services: change feed, object storage, gateway ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// The feed degrades to local-only operation without redis.
		log.Warn(fmt.Sprintf("Redis unreachable, change feed disabled: %v", err))
		rdb = nil
	}
	feed := realtime.NewFeed(rdb)

	media, err := storage.NewMediaStore(cfg.Storage)
	if err != nil {
		// Uploads fail cleanly without object storage; everything else works.
		log.Warn(fmt.Sprintf("Object storage unavailable, uploads disabled: %v", err))
		media = nil
	}

	gw := gateway.NewSQLGateway(db, media, feed, log)

	// --- Per-session State ---
	registry := session.NewRegistry(func(privileged bool) *session.Context {
		return session.NewContext(gw, log, session.Options{
			Privileged:     privileged,
			PublicPageSize: cfg.Sync.PublicPageSize,
			SubscribeDelay: cfg.Sync.SubscribeDelay,
			Debounce:       cfg.Editor.Debounce,
		})
	})
	defer registry.Shutdown()

	// Rendered pages go stale the moment a published post changes; purge
	// the page cache on every published change or delete.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	unsubscribe, err := gw.Subscribe(rootCtx, realtime.TablePosts, func(ev realtime.Event) {
		if ev.Status == data.StatusPublished || ev.Op == realtime.OpDelete {
			if err := pageCache.DeletePrefix(cache.PagePrefix); err != nil {
				log.Error(err, "Failed to purge page cache")
			}
		}
	})
	if err != nil {
		log.Error(err, "Failed to subscribe page cache invalidation")
	} else {
		defer unsubscribe()
	}

	// --- Scheduled Publishing ---
	go runPublishLoop(rootCtx, gw, log, cfg.Sync.PublishInterval)

	// --- Dependency Injection and Handler Initialization ---
	staticFS, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		log.Fatal(err, "Failed to mount static assets")
	}
	publicHandler := handler.NewPublicHandler(registry, sessionManager, viewService, pageCache, cfg.Cache.TTL, log)
	adminHandler := handler.NewAdminHandler(registry, sessionManager, gw, log)
	authHandler := handler.NewAuthHandler(authenticator, sessionManager, registry)

	authzMiddleware := middleware.Authorizer(enforcer, sessionManager)
	errorMiddleware := middleware.Error(log, viewService)

	// --- Router Setup ---
	router := handler.NewRouter(publicHandler, adminHandler, authHandler, authzMiddleware, errorMiddleware, sessionManager, staticFS)

	// --- Server Initialization and Graceful Shutdown ---
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		if cfg.Server.TLS.Enabled {
			log.Info(fmt.Sprintf("Starting HTTPS server on %s", server.Addr))
			if err := server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTPS server")
			}
		} else {
			log.Info(fmt.Sprintf("Starting HTTP server on %s", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTP server")
			}
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Warn("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal(err, "Server forced to shutdown")
	}
	log.Info("Server exiting")
}

// runPublishLoop periodically flips due scheduled posts to published. The
// gateway procedure is idempotent, so overlapping deployments running the
// loop concurrently remain safe.
func runPublishLoop(ctx context.Context, gw gateway.Gateway, log logger.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			published, err := gw.PublishDueScheduledPosts(ctx)
			if err != nil {
				log.Error(err, "Scheduled publish run failed")
				continue
			}
			if published > 0 {
				log.Info(fmt.Sprintf("Published %d scheduled post(s)", published))
			}
		}
	}
}
