package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"finquery/backend/internal/services"
	"finquery/backend/pkg/config"
	apperrors "finquery/backend/pkg/errors"
	"finquery/backend/pkg/logger"
)

// QueryExecutor runs one query through the graph
type QueryExecutor interface {
	Execute(ctx context.Context, input string) (string, error)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	svc, err := services.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to build query pipeline", zap.Error(err))
	}
	defer svc.Close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(svc.App, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

type queryRequest struct {
	Query string `json:"query" binding:"required"`
}

func newRouter(app QueryExecutor, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/query", func(c *gin.Context) {
			var req queryRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if strings.TrimSpace(req.Query) == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "query must not be blank"})
				return
			}

			answer, err := app.Execute(c.Request.Context(), req.Query)
			if err != nil {
				errType := apperrors.TypeOf(err)
				log.Error("Failed to answer query",
					zap.Error(err),
					zap.String("error_type", string(errType)),
				)
				c.JSON(statusFor(errType), gin.H{
					"error":      err.Error(),
					"error_type": errType,
					"retryable":  apperrors.IsRetryable(err),
				})
				return
			}

			c.JSON(http.StatusOK, gin.H{"answer": answer})
		})
	}

	return router
}

func statusFor(errType apperrors.ErrorType) int {
	if errType == apperrors.ErrorTypeContext {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
