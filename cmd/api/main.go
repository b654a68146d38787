package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"gympass/internal/auth"
	"gympass/internal/checkin"
	"gympass/internal/config"
	"gympass/internal/httpmiddleware"
	"gympass/internal/kiosk"
	"gympass/internal/membership"
	"gympass/internal/queue"
	"gympass/internal/store"
	"gympass/internal/token"
)

const dayFormat = "2006-01-02"

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
	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		log.Printf("warning: migrations not applied: %v", err)
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "gympass:checkins")
	}

	members := membership.NewRepository(db.Client)
	kiosks := kiosk.NewRepository(db.Client)
	recorder := checkin.NewRepository(db.Client)
	metrics := checkin.NewMetrics(prometheus.DefaultRegisterer)
	engine := checkin.NewService(members, recorder, q, metrics)
	issuer := token.NewIssuer(cfg.AdmissionTTL)

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

	r.POST("/v1/kiosks/register", func(c *gin.Context) {
		var req struct {
			KioskID string `json:"kiosk_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := kiosks.Register(c.Request.Context(), req.KioskID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.KioskID, auth.RoleKiosk, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		_ = kiosks.SaveRefreshToken(c.Request.Context(), req.KioskID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))

	type planRequest struct {
		MemberID  string `json:"member_id"`
		Name      string `json:"name"`
		PlanLabel string `json:"plan_label"`
		StartsOn  string `json:"starts_on" binding:"required"`
		EndsOn    string `json:"ends_on" binding:"required"`
		Quota     int    `json:"quota"`
		Unlimited bool   `json:"unlimited"`
	}

	issueMembership := func(c *gin.Context, memberID string) {
		var req planRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if memberID == "" {
			memberID = req.MemberID
		}
		if memberID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "member_id required"})
			return
		}
		start, err := time.Parse(dayFormat, req.StartsOn)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "starts_on must be YYYY-MM-DD"})
			return
		}
		end, err := time.Parse(dayFormat, req.EndsOn)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ends_on must be YYYY-MM-DD"})
			return
		}
		if end.Before(start) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ends_on before starts_on"})
			return
		}
		if !req.Unlimited && req.Quota <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quota required for limited plans"})
			return
		}

		m, err := members.Issue(c.Request.Context(), memberID, req.Name, req.PlanLabel, start, end, req.Quota, req.Unlimited)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		dropSummaryCache(c.Request.Context(), redisClient.Client, memberID)
		c.JSON(http.StatusCreated, gin.H{
			"membership_id": m.ID,
			"member_id":     m.MemberID,
			"plan_label":    m.PlanLabel,
			"starts_on":     m.Start.Format(dayFormat),
			"ends_on":       m.End.Format(dayFormat),
		})
	}

	authGroup.POST("/members", func(c *gin.Context) {
		issueMembership(c, "")
	})

	// Renewal is a new membership row; the old attendance log stays behind.
	authGroup.POST("/members/:id/renew", func(c *gin.Context) {
		issueMembership(c, c.Param("id"))
	})

	authGroup.GET("/members/:id/summary", func(c *gin.Context) {
		memberID := c.Param("id")
		ctx := c.Request.Context()

		if cached, err := redisClient.Client.Get(ctx, summaryCacheKey(memberID)).Bytes(); err == nil {
			c.Data(http.StatusOK, "application/json", cached)
			return
		}

		sum, err := engine.Summarize(ctx, memberID, time.Now())
		if err != nil {
			if errors.Is(err, membership.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown member"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		body, err := json.Marshal(sum)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := redisClient.Client.Set(ctx, summaryCacheKey(memberID), body, cfg.SummaryCacheTTL).Err(); err != nil {
			log.Printf("summary cache set failed: %v", err)
		}
		c.Data(http.StatusOK, "application/json", body)
	})

	authGroup.POST("/members/:id/qr", func(c *gin.Context) {
		memberID := c.Param("id")
		m, err := members.GetByMemberID(c.Request.Context(), memberID)
		if err != nil {
			if errors.Is(err, membership.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown member"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		tok := issuer.Issue(memberID, m.PlanLabel, time.Now())
		c.JSON(http.StatusCreated, tok)
	})

	authGroup.POST("/checkins", func(c *gin.Context) {
		var req struct {
			MemberID string          `json:"member_id" binding:"required"`
			Token    json.RawMessage `json:"token"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var raw []byte
		if len(req.Token) > 0 && string(req.Token) != "null" {
			raw = req.Token
		}

		decision, err := engine.Decide(c.Request.Context(), req.MemberID, raw, time.Now())
		if err != nil {
			if errors.Is(err, membership.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown member"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if decision.Admitted {
			dropSummaryCache(c.Request.Context(), redisClient.Client, req.MemberID)
			c.JSON(http.StatusOK, decision)
			return
		}
		c.JSON(http.StatusConflict, decision)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}

func summaryCacheKey(memberID string) string {
	return "gympass:summary:" + memberID
}

func dropSummaryCache(ctx context.Context, client *redis.Client, memberID string) {
	if err := client.Del(ctx, summaryCacheKey(memberID)).Err(); err != nil {
		log.Printf("summary cache invalidation failed for %s: %v", memberID, err)
	}
}

// CORS middleware for browser requests from the front-desk UI.
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

// Security headers middleware.
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
