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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classroom/internal/attendance"
	"classroom/internal/auth"
	"classroom/internal/clock"
	"classroom/internal/config"
	"classroom/internal/courseclient"
	"classroom/internal/httpmiddleware"
	"classroom/internal/metrics"
	"classroom/internal/queue"
	"classroom/internal/session"
	"classroom/internal/store"
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
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	repo := attendance.NewRepository(db.Client)
	clk := clock.Real{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lifecycle := session.Config{
		InactivityTimeout: cfg.InactivityTimeout,
		RenewalThreshold:  cfg.RenewalThreshold,
		PollInterval:      cfg.PollInterval,
	}
	var sessions session.Store
	if cfg.SessionBackend == "memory" {
		sessions = session.NewMemoryStore()
	} else {
		sessions = session.NewRedisStore(redisClient.Client, cfg.RenewalThreshold+2*cfg.InactivityTimeout)
	}

	// Best-effort server-side invalidation: failure must never keep the user
	// logged in locally.
	revokeTokens := func(rec session.Record) {
		rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer rcancel()
		if err := repo.RevokeRefreshTokens(rctx, rec.User.ID); err != nil {
			log.Printf("refresh token revoke for user %s failed: %v", rec.User.ID, err)
		}
	}

	mgr := session.NewManager(sessions, lifecycle, clk)
	mgr.OnExpire = func(rec session.Record) {
		metrics.SessionsEnded.WithLabelValues(metrics.ReasonInactivity).Inc()
		revokeTokens(rec)
	}

	// One host-owned timer drives every session's lifecycle evaluation.
	sweeper := session.NewSweeper(sessions, lifecycle, clk)
	sweeper.OnExpire = mgr.OnExpire
	sweeper.OnPrompt = func(session.Record) { metrics.RenewalPrompts.Inc() }
	go sweeper.Run(ctx)

	catalog := courseclient.New(cfg.CatalogURL, cfg.CatalogSkip)
	winCfg := attendance.WindowConfig{EarlyWindow: cfg.CheckinEarlyWindow, LateGrace: cfg.CheckinLateGrace}
	att := attendance.NewService(repo, catalog, winCfg, clk)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classroom:attendance")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	loginLimiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)

	r.POST("/v1/auth/login", loginLimiter.GinMiddleware(), func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		acct, err := repo.GetAccountByUsername(c.Request.Context(), req.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		if acct == nil || auth.VerifyPassword(acct.PasswordHash, req.Password) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		sid, err := session.NewID()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		tokens, err := auth.Issue(acct.ID, acct.Role, sid, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		user := session.User{ID: acct.ID, Name: acct.Name, Role: acct.Role}
		rec, err := mgr.Start(c.Request.Context(), sid, user, tokens.AccessToken)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session start failed"})
			return
		}

		_ = repo.SaveRefreshToken(c.Request.Context(), acct.ID, tokens.RefreshToken, tokens.RefreshExp)
		metrics.SessionsStarted.Inc()

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
			"user":          user,
			"session": gin.H{
				"state":              session.Active.String(),
				"session_started_at": rec.SessionStartedAt,
			},
		})
	})

	// Session control routes only verify the token. Polling session state or
	// answering the renewal prompt must not count as user activity, or a
	// dashboard left open would never idle out.
	sess := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))

	sess.GET("/session", func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		rec, state, err := mgr.Describe(c.Request.Context(), claims.SessionID)
		if errors.Is(err, session.ErrSessionExpired) {
			c.JSON(http.StatusOK, gin.H{"state": session.Unauthenticated.String()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"state":                  state.String(),
			"renewal_prompt_visible": rec.RenewalPromptVisible,
			"last_activity_at":       rec.LastActivityAt,
			"session_started_at":     rec.SessionStartedAt,
			"user":                   rec.User,
		})
	})

	sess.POST("/session/activity", func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		if err := mgr.Touch(c.Request.Context(), claims.SessionID); err != nil {
			if errors.Is(err, session.ErrSessionExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "activity update failed"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	sess.POST("/session/renew", func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		rec, err := mgr.Renew(c.Request.Context(), claims.SessionID)
		switch {
		case errors.Is(err, session.ErrSessionExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		case errors.Is(err, session.ErrRenewNotPending):
			// Benign race between UI and timer; report current state.
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "renew failed"})
			return
		default:
			metrics.SessionsRenewed.Inc()
		}
		c.JSON(http.StatusOK, gin.H{
			"state":                  session.Active.String(),
			"renewal_prompt_visible": rec.RenewalPromptVisible,
			"session_started_at":     rec.SessionStartedAt,
		})
	})

	sess.POST("/auth/logout", func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		revokeTokens(session.Record{User: session.User{ID: claims.Subject}})
		if err := mgr.Logout(c.Request.Context(), claims.SessionID); err != nil {
			log.Printf("session delete on logout failed: %v", err)
		}
		metrics.SessionsEnded.WithLabelValues(metrics.ReasonLogout).Inc()
		c.Status(http.StatusNoContent)
	})

	// Everything below is real user interaction and feeds the activity clock.
	active := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer), httpmiddleware.SessionActivity(mgr))

	active.GET("/classes", func(c *gin.Context) {
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		classes, err := repo.ListClasses(c.Request.Context(), c.Query("course_id"), c.Query("teacher_id"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"classes": classes})
	})

	active.GET("/classes/:id", func(c *gin.Context) {
		class, err := repo.GetClass(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if class == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "class not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"class": class})
	})

	active.GET("/classes/:id/window", func(c *gin.Context) {
		ws, err := att.ClassWindow(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondScheduleError(c, err)
			return
		}
		c.JSON(http.StatusOK, ws)
	})

	active.POST("/classes/:id/checkins", auth.RequireRole(session.RoleStudent), func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		rec, err := att.SelfCheckIn(c.Request.Context(), c.Param("id"), claims.Subject)
		if errors.Is(err, attendance.ErrWindowClosed) {
			metrics.CheckInsRejected.Inc()
			c.JSON(http.StatusConflict, gin.H{"error": "you can no longer check in to this class"})
			return
		}
		if err != nil {
			respondScheduleError(c, err)
			return
		}

		metrics.CheckIns.WithLabelValues(string(rec.Status)).Inc()
		if err := q.Publish(ctx, queue.Message{Type: "attendance", Body: []byte(rec.ID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
		c.JSON(http.StatusAccepted, gin.H{"record": rec})
	})

	active.POST("/classes/:id/attendance", auth.RequireRole(session.RoleTeacher, session.RoleAdmin), func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
			Status    string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims := auth.ClaimsFrom(c)
		rec, err := att.Mark(c.Request.Context(), c.Param("id"), req.StudentID, attendance.Status(req.Status), claims.Subject)
		if err != nil {
			respondScheduleError(c, err)
			return
		}

		metrics.StaffMarks.WithLabelValues(string(rec.Status)).Inc()
		if err := q.Publish(ctx, queue.Message{Type: "attendance", Body: []byte(rec.ID)}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
		c.JSON(http.StatusOK, gin.H{"record": rec})
	})

	active.GET("/classes/:id/attendance", auth.RequireRole(session.RoleTeacher, session.RoleAdmin), func(c *gin.Context) {
		records, err := att.Roll(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	// Graceful shutdown
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
	cancel() // stop the session sweeper

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// respondScheduleError maps evaluator and lookup failures onto API responses.
func respondScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrClassNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "class not found"})
	case errors.Is(err, attendance.ErrInvalidSchedule):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "this class has no valid schedule"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
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
