package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/riaaa16/ai-consultant/handlers"
	"github.com/riaaa16/ai-consultant/internal/config"
	"github.com/riaaa16/ai-consultant/internal/content"
	contenthandler "github.com/riaaa16/ai-consultant/internal/content/handler"
	"github.com/riaaa16/ai-consultant/internal/database"
	"github.com/riaaa16/ai-consultant/internal/gitops"
	"github.com/riaaa16/ai-consultant/internal/history"
	"github.com/riaaa16/ai-consultant/internal/oidc"
	"github.com/riaaa16/ai-consultant/internal/pathguard"
	"github.com/riaaa16/ai-consultant/internal/storage"
	"github.com/riaaa16/ai-consultant/internal/tokens"
	"github.com/riaaa16/ai-consultant/pkg/logger"
	"github.com/riaaa16/ai-consultant/pkg/metrics"
	"github.com/riaaa16/ai-consultant/pkg/middleware"
)

var startTime = time.Now()

// deps are the runtime collaborators shared by the routes and readiness.
type deps struct {
	cfg       *config.Config
	updater   *content.Updater
	verifier  middleware.Verifier
	publisher contenthandler.Publisher
	redis     *redis.Client
	mongo     *mongo.Client
}

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: content=%s keycloak=%v mongo=%v redis=%v minio=%v git=%v",
		cfg.Content.Root, cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", cfg.Git.AutoPush)

	ctx := context.Background()
	d := &deps{cfg: cfg}

	if cfg.Redis.Host != "" {
		d.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := d.redis.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		} else {
			logger.Infof("connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	var hist history.Repository = history.NewMemoryRepo()
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Warnf("history falls back to memory: %v", err)
		} else {
			d.mongo = client
			defer func() { _ = client.Disconnect(context.Background()) }()
			hist = history.NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection("content_history"))
			logger.Infof("history stored in MongoDB database %s", cfg.MongoDB.Database)
		}
	}

	opts := []content.Option{content.WithHistory(hist)}
	if cfg.MinIO.Endpoint != "" {
		mirror, err := storage.NewMinIOMirror(cfg.MinIO)
		if err != nil {
			logger.Warnf("backup mirror disabled: %v", err)
		} else {
			opts = append(opts, content.WithMirror(mirror))
			logger.Infof("mirroring backups to bucket %s", cfg.MinIO.Bucket)
		}
	}
	d.updater, err = content.New(cfg.Content.Root, cfg.Content.SchemaDir, opts...)
	if err != nil {
		logger.Fatalf("content updater: %v", err)
	}

	d.verifier = buildVerifier(ctx, cfg)

	if cfg.Git.AutoPush {
		gc, err := gitops.New(cfg.Git.RepoRoot, cfg.Git.Timeout, cfg.Git.Push)
		if err != nil {
			logger.Warnf("git publishing disabled: %v", err)
		} else {
			d.publisher = gitops.NewPublisher(gc)
			logger.Infof("git publishing enabled (repo=%s push=%v)", gc.RepoRoot(), cfg.Git.Push)
		}
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r := newRouter(d)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting content service on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// buildVerifier chains every configured token source. nil means the API is
// served without authentication.
func buildVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	var chain middleware.Chain
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		ver, err := oidc.NewKeycloakVerifier(ctx, cfg.Keycloak)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			chain = append(chain, ver)
		}
	}
	if cfg.JWT.Secret != "" {
		chain = append(chain, tokens.NewHMACVerifier(cfg.JWT.Secret))
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
		logger.Warn("enabling insecure token verifier (integration mode)")
		chain = append(chain, oidc.NewInsecureVerifier())
	}
	if len(chain) == 0 {
		logger.Warnf("no token verifier configured; content API is unauthenticated")
		return nil
	}
	return chain
}

func newRouter(d *deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		ready, status := readiness(c.Request.Context(), d)
		code := http.StatusOK
		label := "ready"
		if !ready {
			code = http.StatusServiceUnavailable
			label = "not_ready"
		}
		c.JSON(code, gin.H{"status": label, "deps": status, "uptime": time.Since(startTime).String()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	api := r.Group("/")
	if d.verifier != nil {
		api.Use(middleware.AuthMiddleware(d.verifier))
	}
	if rl := d.cfg.RateLimit; rl.Enabled {
		if rl.UseRedis && d.redis != nil {
			api.Use(middleware.RedisRateLimitMiddleware(d.redis, rl.RPS, rl.Burst, time.Duration(rl.WindowSeconds)*time.Second))
		} else {
			api.Use(middleware.RateLimitMiddleware(rl.RPS, rl.Burst))
		}
	}
	contenthandler.RegisterContentRoutes(api, d.updater, d.publisher)
	return r
}

// readiness requires the content file to be present and every configured
// backing service to answer.
func readiness(ctx context.Context, d *deps) (bool, map[string]bool) {
	status := map[string]bool{}
	ready := true

	_, err := os.Stat(filepath.Join(d.updater.Root(), pathguard.AllowedFile))
	status["content"] = err == nil
	ready = ready && status["content"]

	if d.cfg.Redis.Host != "" && d.cfg.RateLimit.UseRedis {
		status["redis"] = d.redis != nil && d.redis.Ping(ctx).Err() == nil
		ready = ready && status["redis"]
	}
	if d.mongo != nil {
		status["mongo"] = d.mongo.Ping(ctx, nil) == nil
		ready = ready && status["mongo"]
	}
	if d.cfg.Keycloak.URL != "" {
		status["oidc"] = d.verifier != nil
		ready = ready && status["oidc"]
	}
	return ready, status
}
