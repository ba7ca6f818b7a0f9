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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"clubhours/internal/auth"
	"clubhours/internal/cloudinary"
	"clubhours/internal/config"
	"clubhours/internal/handler"
	"clubhours/internal/httpmiddleware"
	"clubhours/internal/notify"
	"clubhours/internal/sheets"
	"clubhours/internal/volunteer"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	// Every client is constructed exactly once here and handed down;
	// nothing reconstructs backends per call.
	gateway := sheets.New(cfg.SheetsBaseURL, cfg.SpreadsheetID, cfg.SheetsToken)
	if cfg.SpreadsheetID == "" {
		log.Println("warning: SPREADSHEET_ID not set, backing store calls will fail")
	}

	var uploads volunteer.Uploader
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		uploads = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set); submissions will fail")
		uploads = unconfiguredUploader{}
	}

	var redisClient *redis.Client
	var sink notify.Sink
	if cfg.QueueBackend == "memory" {
		sink = notify.NewInMemory(64)
	} else {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
		})
		sink = notify.NewRedisQueue(redisClient, "")
	}

	codec := &volunteer.Codec{Strict: cfg.StrictDecode}
	requests := volunteer.NewRequests(gateway, codec)
	types := volunteer.NewAchievementTypes(gateway, codec)
	members := volunteer.NewMembers(gateway, codec)
	svc := volunteer.NewService(requests, types, uploads, sink)
	h := handler.New(svc, requests, types, members, cfg)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		queueHealthy := redisClient == nil || redisClient.Ping(c.Request.Context()).Err() == nil
		status := http.StatusOK
		if !queueHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "queue": queueHealthy})
	})

	limiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)

	// Public surface: the submission flow and the type catalogue.
	r.POST("/v1/auth/login", h.Login)
	r.GET("/v1/achievements/types", h.GetTypes)
	r.POST("/v1/requests", limiter.GinMiddleware(), h.Submit)

	// Everything else requires the admin role before any backend call.
	admin := r.Group("/v1", auth.AdminRequired(cfg.JWTSigningKey, cfg.JWTIssuer))
	admin.GET("/auth/me", h.Me)
	admin.POST("/achievements/types", h.AddType)
	admin.DELETE("/achievements/types/:rowIndex", h.DeleteType)
	admin.GET("/requests", h.GetAll)
	admin.GET("/requests/pending", h.GetPending)
	admin.POST("/requests/:rowIndex/approve", h.Approve)
	admin.DELETE("/requests/:rowIndex", h.Reject)
	admin.GET("/members", h.GetMembers)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// unconfiguredUploader refuses every upload so a submission can never
// persist without a proof link.
type unconfiguredUploader struct{}

func (unconfiguredUploader) Upload(context.Context, []byte, string) (string, error) {
	return "", errUploadsNotConfigured
}

var errUploadsNotConfigured = errors.New("image storage not configured")

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
