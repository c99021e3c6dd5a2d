package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"telecare/care-portal/care-portal-backend/internal/audit"
	"telecare/care-portal/care-portal-backend/internal/auth"
	"telecare/care-portal/care-portal-backend/internal/certificates"
	"telecare/care-portal/care-portal-backend/internal/config"
	"telecare/care-portal/care-portal-backend/internal/documents"
	"telecare/care-portal/care-portal-backend/internal/signing"
	"telecare/care-portal/care-portal-backend/internal/verification"
	"telecare/care-portal/care-portal-backend/pkg/pdf"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	masterKey, err := cfg.Signing.DecodeMasterKey()
	if err != nil {
		logger.Fatal("Invalid signing configuration", zap.Error(err))
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("AUTH_JWT_SECRET is not configured")
	}

	// Connect to database
	dbURL := cfg.Database.GetDatabaseURL()
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := applyMigrations(db, "migrations"); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to open gorm connection", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(&certificates.Certificate{}, &audit.Entry{}); err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}

	// Wire services
	auditService := audit.NewService(gormDB, logger)

	certRepo := certificates.NewRepository(gormDB)
	certService := certificates.NewService(certRepo, masterKey, cfg.Signing.OperationTimeout, logger)
	certHandler := certificates.NewHandler(certService, auditService, logger)

	renderer := pdf.NewRenderer()
	docRepo := documents.NewRepository(db)
	docService := documents.NewService(docRepo, renderer, logger)
	docHandler := documents.NewHandler(docService, auditService, logger)

	signService := signing.NewService(docService, docRepo, certService, logger)
	signHandler := signing.NewHandler(signService, auditService, logger)

	verifyService := verification.NewService(docRepo, logger)
	verifyHandler := verification.NewHandler(verifyService, logger)

	authMiddleware := auth.NewMiddleware(cfg.Auth.JWTSecret)

	// Nightly expiry sweep: flags expired certificates, never deletes them.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		certService.SweepExpired(ctx)
	}); err != nil {
		logger.Fatal("Failed to schedule expiry sweep", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	api.Use(authMiddleware.RequireAuth())
	{
		certHandler.RegisterRoutes(api)
		docHandler.RegisterRoutes(api)
		signHandler.RegisterRoutes(api)
	}

	// Public, unauthenticated document authenticity lookup
	public := router.Group("/public")
	{
		verifyHandler.RegisterRoutes(public)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if userID, ok := auth.UserID(c); ok {
			fields = append(fields, zap.String("user_id", userID.String()))
		}
		logger.Info("HTTP Request", fields...)
	}
}

func applyMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(fmt.Sprintf("%s/%s", dir, entry.Name()))
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(data)); err != nil {
			return fmt.Errorf("migration %s failed: %w", entry.Name(), err)
		}
	}
	return nil
}
