package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter builds the HTTP routes. Routes that change balances are only
// registered when a cron token is configured.
func SetupRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())
	if h.Metrics != nil {
		router.Use(h.Metrics.GinMiddleware())
		router.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	router.GET("/healthz", h.Health)
	router.POST("/webhooks/identity", h.IdentityWebhook)

	v1 := router.Group("/v1/users/:userID/credits")
	{
		v1.GET("", h.GetBalance)
		v1.GET("/transactions", h.ListTransactions)
		v1.GET("/sufficient", h.CheckSufficient)
	}

	if h.CronToken != "" {
		v1.POST("/transactions", BearerAuth(h.CronToken), h.RecordTransaction)

		internal := router.Group("/internal", BearerAuth(h.CronToken))
		internal.POST("/credits/:userID/refresh", h.RefreshCredits)
		if h.Messages != nil {
			internal.POST("/users/:userID/conversations", h.CreateConversation)
			internal.POST("/conversations/:conversationID/messages", h.RecordMessage)
			internal.DELETE("/messages/:messageID", h.DeleteMessage)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	})
	return router
}
