package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.Use(RequestID(), RequestLogger())

	api := router.Group("/api")
	{
		api.GET("/fx", handler.GetFxRate)
		api.GET("/quote_usd", handler.GetUSDQuote)
		api.GET("/quote", handler.GetQuote)
		api.GET("/resolve", handler.Resolve)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// ServeStatic serves files under dir for every path no route matched.
func ServeStatic(router *gin.Engine, dir string) {
	if dir == "" {
		return
	}
	router.NoRoute(gin.WrapH(http.FileServer(http.Dir(dir))))
}
