package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/family-finance-ledger/internal/api_gateway/handler"
	"github.com/family-finance-ledger/internal/api_gateway/middleware"
	"github.com/gin-gonic/gin"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, draftHandler *handler.StatementDraftHandler) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	drafts := r.Group("/ai/statement-drafts", middleware.UserIdentity())
	{
		drafts.POST("", draftHandler.Create)
		drafts.GET("/:id", draftHandler.GetByID)
		drafts.POST("/:id/revise", draftHandler.Revise)
		drafts.POST("/:id/apply", draftHandler.Apply)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
