package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"

	"vextract/internal/admission"
	"vextract/internal/cache"
	"vextract/internal/config"
	"vextract/internal/download"
	"vextract/internal/extractor"
	"vextract/internal/handler"
)

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = 10 * time.Minute
	jobRetention    = 24 * time.Hour
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags|log.LUTC)

	if err := config.LoadEnvFile(".env", logger); err != nil {
		logger.Fatalf("ERROR: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("ERROR: invalid configuration: %v", err)
	}
	cfg.Validate(logger)

	if err := os.MkdirAll(cfg.DownloadsPath, 0o755); err != nil {
		logger.Fatalf("ERROR: create downloads directory: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	staticKeys := make([]admission.APIKey, 0, len(cfg.APIKeys))
	now := time.Now().UTC()
	for _, key := range cfg.APIKeys {
		staticKeys = append(staticKeys, admission.APIKey{
			Key:         key.Key,
			Source:      admission.StaticKey,
			Name:        key.Name,
			Permissions: key.Permissions,
			CreatedAt:   now,
		})
	}
	staticStore := admission.NewMemoryStore(staticKeys)

	var tempStore admission.KeyStore = admission.NewMemoryStore(nil)
	if cfg.FirestoreProjectID != "" {
		client, err := firestore.NewClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			logger.Fatalf("ERROR: firestore client: %v", err)
		}
		defer func() { _ = client.Close() }()
		tempStore = admission.NewFirestoreStore(client, cfg.FirestoreCollection)
		logger.Printf("INFO: temporary keys persisted in firestore project=%s collection=%s", cfg.FirestoreProjectID, cfg.FirestoreCollection)
	}

	limiter := admission.NewRateLimiter(cfg.RateCeiling, cfg.RateWindow)
	blocks := admission.NewBlockList(cfg.BlockThreshold, cfg.BlockWindow, cfg.BlockDuration)
	controller := admission.NewController(
		admission.TieredResolver{staticStore, tempStore},
		limiter,
		blocks,
		logger,
		admission.ControllerConfig{},
	)
	keyService := admission.NewKeyService(tempStore, logger, admission.ServiceConfig{})

	var responseCache cache.Store
	var memoryCache *cache.MemoryStore
	if cfg.CacheEnabled {
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			defer func() { _ = rdb.Close() }()

			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			_, err := rdb.Ping(pingCtx).Result()
			cancel()
			if err != nil {
				logger.Fatalf("ERROR: redis ping: %v", err)
			}
			responseCache = cache.NewRedisStore(rdb, cfg.CacheTTL, logger)
			logger.Printf("INFO: response cache backed by redis addr=%s ttl=%s", cfg.RedisAddr, cfg.CacheTTL)
		} else {
			memoryCache = cache.NewMemoryStore(cfg.CacheTTL, cache.MemoryConfig{Capacity: cfg.CacheCapacity})
			responseCache = memoryCache
			logger.Printf("INFO: response cache in memory ttl=%s capacity=%d", cfg.CacheTTL, cfg.CacheCapacity)
		}
	}

	client := extractor.NewYTDLPClient(cfg.YTDLPPath)
	manager := download.NewManager(client, download.ManagerConfig{
		Dir:           cfg.DownloadsPath,
		MaxConcurrent: cfg.MaxConcurrentDownloads,
		MaxFileSize:   cfg.MaxFileSizeBytes(),
	}, logger)

	mux := http.NewServeMux()
	extractGate := admission.Middleware(controller, admission.PermissionExtract, logger)
	downloadGate := admission.Middleware(controller, admission.PermissionDownload, logger)

	mux.Handle("/api/v1/extract", extractGate(handler.NewExtractHandler(client, responseCache, logger)))
	mux.Handle("/api/v1/validate", extractGate(handler.NewValidateHandler(client, logger)))
	mux.Handle("/api/v1/platforms", extractGate(handler.NewPlatformsHandler()))
	mux.Handle("/api/v1/download", downloadGate(handler.NewDownloadHandler(manager, logger)))
	mux.Handle("/api/v1/status/", downloadGate(handler.NewStatusHandler(manager, logger)))
	mux.Handle("/api/v1/downloads/", downloadGate(handler.NewFilesHandler(manager, logger)))
	mux.Handle("/api/v1/", handler.NewInfoHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if len(cfg.AdminKeys) > 0 {
		adminMux := http.NewServeMux()
		handler.NewKeyAdminHandler(keyService, logger).Register(adminMux)
		adminGate := admission.AdminAuthMiddleware(admission.AdminMiddlewareConfig{
			MasterKeys: cfg.AdminKeys,
			Logger:     logger,
		})
		mux.Handle("/admin/", adminGate(adminMux))
	}

	corsPolicy, err := handler.NewCORSPolicy(cfg.AllowedOrigins)
	if err != nil {
		logger.Fatalf("ERROR: invalid ALLOWED_ORIGINS: %v", err)
	}

	root := http.Handler(mux)
	root = handler.CORSMiddleware(corsPolicy, root)
	root = admission.SecurityHeaders(root)
	root = loggingMiddleware(logger)(root)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	go runJanitor(ctx, logger, limiter, blocks, memoryCache, manager, keyService, cfg.FirestoreProjectID != "")

	logger.Printf("INFO: starting server addr=%s rate=%d/%s cache_ttl=%s block_threshold=%d", cfg.ListenAddr(), cfg.RateCeiling, cfg.RateWindow, cfg.CacheTTL, cfg.BlockThreshold)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Println("INFO: shutdown signal received")
	case err := <-errCh:
		logger.Fatalf("ERROR: server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("ERROR: graceful shutdown failed: %v", err)
	} else {
		logger.Println("INFO: server stopped gracefully")
	}
}

// runJanitor periodically evicts expired admission and cache state. Lazy
// eviction on access keeps correctness; this keeps memory flat.
func runJanitor(ctx context.Context, logger *log.Logger, limiter *admission.RateLimiter, blocks *admission.BlockList, memoryCache *cache.MemoryStore, manager *download.Manager, keys *admission.KeyService, cleanupKeys bool) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			limiter.Sweep(now)
			blocks.Purge(now)
			if memoryCache != nil {
				if removed := memoryCache.Sweep(); removed > 0 {
					logger.Printf("INFO: event=cache_sweep removed=%d", removed)
				}
			}
			manager.PurgeJobs(jobRetention)
			if cleanupKeys {
				if count, err := keys.CleanupExpired(ctx, 0); err != nil {
					logger.Printf("WARN: cleanup expired keys: %v", err)
				} else if count > 0 {
					logger.Printf("INFO: event=key_cleanup removed=%d", count)
				}
			}
		}
	}
}

func loggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			logger.Printf("INFO: method=%s path=%s status=%d duration=%s", r.Method, r.URL.Path, rec.status, time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
