package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartmess/internal/auth"
	"smartmess/internal/config"
	"smartmess/internal/httpmiddleware"
	"smartmess/internal/mealtime"
	"smartmess/internal/mess"
	"smartmess/internal/noshow"
	"smartmess/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	schedule, err := cfg.Schedule()
	if err != nil {
		return err
	}
	clock := cfg.Clock()
	if !cfg.SimulatedTime.IsZero() {
		log.Printf("clock pinned to simulated time %s", cfg.SimulatedTime.Format(time.RFC3339))
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)

	repo := mess.NewRepository(db.Client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	if cfg.SeedDemo {
		if err := repo.SeedDemo(ctx, clock()); err != nil {
			log.Printf("demo seed failed: %v", err)
		}
	}

	svc := mess.NewService(repo, schedule, clock, mess.Policy{
		EnforceCutoff:  cfg.EnforceCutoff,
		EnforceWindow:  cfg.EnforceWindow,
		AllowWalkIn:    cfg.AllowWalkIn,
		BufferEnabled:  cfg.BufferEnabled,
		BufferFraction: cfg.BufferFraction,
	})

	sweeper := noshow.New(repo, schedule, clock, cfg.SweepInterval)
	go sweeper.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/auth/login", func(c *gin.Context) {
		var req struct {
			StudentID int64 `json:"student_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		student, err := svc.StudentByID(c.Request.Context(), req.StudentID)
		if err != nil {
			respondError(c, err)
			return
		}
		token, exp, err := auth.Issue(student.ID, "student", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"student":      student,
			"access_token": token,
			"expires_at":   exp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.StudentAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.GET("/students/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
			return
		}
		student, err := svc.StudentByID(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, student)
	})

	authGroup.POST("/booking", func(c *gin.Context) {
		var req struct {
			StudentID int64 `json:"student_id" binding:"required"`
			MessID    int64 `json:"mess_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := svc.CreateReservation(c.Request.Context(), req.StudentID, req.MessID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	})

	authGroup.POST("/scan", func(c *gin.Context) {
		var req struct {
			StudentID int64 `json:"student_id" binding:"required"`
			MessID    int64 `json:"mess_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := svc.RecordEntry(c.Request.Context(), req.StudentID, req.MessID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	authGroup.GET("/dashboard/mess-counts", func(c *gin.Context) {
		const cacheKey = "mess:counts"
		var cached []mess.MessCount
		if redisClient.GetJSON(c.Request.Context(), cacheKey, &cached) {
			c.JSON(http.StatusOK, gin.H{"counts": cached})
			return
		}
		counts, err := svc.MessCounts(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		redisClient.SetJSON(c.Request.Context(), cacheKey, counts, 15*time.Second)
		c.JSON(http.StatusOK, gin.H{"counts": counts})
	})

	authGroup.GET("/dashboard/students/:id/summary", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
			return
		}
		summary, err := svc.SummaryFor(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	authGroup.GET("/dashboard/no-shows", func(c *gin.Context) {
		records, err := svc.NoShowsToday(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"no_shows": records})
	})

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
	cancel() // stops the sweeper

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// respondError maps core errors onto HTTP statuses. Domain-rule violations
// are plain 400s, unknown entities 404, a dead clock 503, anything else 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mess.ErrStudentNotFound), errors.Is(err, mess.ErrMessNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, mealtime.ErrNoActivePeriod):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, mess.ErrDuplicateBooking),
		errors.Is(err, mess.ErrIneligibleYear),
		errors.Is(err, mess.ErrMessFull),
		errors.Is(err, mess.ErrAlreadyAttended),
		errors.Is(err, mess.ErrMarkedNoShow),
		errors.Is(err, mess.ErrNoBookingFound),
		errors.Is(err, mess.ErrBookingClosed),
		errors.Is(err, mess.ErrWindowClosed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

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
