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
	"go.uber.org/zap"

	"github.com/liyao/tapd-feishu-sync/internal/config"
	"github.com/liyao/tapd-feishu-sync/internal/email"
	"github.com/liyao/tapd-feishu-sync/internal/feishu"
	"github.com/liyao/tapd-feishu-sync/internal/tapd"
	"github.com/liyao/tapd-feishu-sync/internal/webhook"
	"github.com/liyao/tapd-feishu-sync/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting TAPD-Feishu sync service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize outbound clients
	tapdClient := tapd.NewClient(tapd.Config{
		WorkspaceID: cfg.Tapd.WorkspaceID,
		APIKey:      cfg.Tapd.APIKey,
		BaseURL:     cfg.Tapd.BaseURL,
		Timeout:     cfg.Tapd.Timeout,
	}, log)

	feishuClient := feishu.NewClient(feishu.Config{
		AppID:     cfg.Feishu.AppID,
		AppSecret: cfg.Feishu.AppSecret,
		BaseToken: cfg.Feishu.BaseToken,
		TableID:   cfg.Feishu.TableID,
		BaseURL:   cfg.Feishu.BaseURL,
		Timeout:   cfg.Feishu.Timeout,
	}, log)

	// Best-effort connectivity probes; failures are logged, not fatal
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if !tapdClient.TestConnection(ctx) {
			log.Warn("TAPD connectivity probe failed")
		}
		if !feishuClient.TestConnection(ctx) {
			log.Warn("Feishu connectivity probe failed")
		}
	}()

	// Initialize webhook pipeline
	processor := webhook.NewProcessor(tapdClient, feishuClient, log)
	webhookHandler := webhook.NewHandler(processor, cfg.Webhook.Secret, log)

	// Initialize email notifier
	routing := email.NewRouting(cfg.Email.Projects)
	smtpSender := email.NewSMTPSender(cfg.SMTP, log)
	notifier := email.NewNotifier(routing, smtpSender, log)
	emailHandler := email.NewHandler(notifier, routing, log)

	// Set Gin mode based on logger level
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "tapd-feishu-sync",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// Webhook endpoint
	router.POST("/webhook/tapd", webhookHandler.Handle)

	// Email endpoints
	router.POST("/email/send-requirement-confirmation", emailHandler.SendRequirementConfirmation)
	router.GET("/email/project-configs", emailHandler.ListProjectConfigs)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// loggingMiddleware logs each request with latency and status
func loggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.String("latency", time.Since(start).String()),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// corsMiddleware allows cross-origin calls from the Feishu button widget
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
