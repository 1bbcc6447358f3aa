package web

import "github.com/gin-gonic/gin"

// SetupRoutes configures all routes. limiter may be nil.
func SetupRoutes(router *gin.Engine, h *Handler, limiter *IPLimiter) {
	// Health check
	router.GET("/health", h.Health)

	// Pages
	router.GET("/", h.Index)
	router.GET("/results/:id", h.ShowResult)
	router.GET("/results/:id/raw", h.RawResult)

	// Scrape routes, rate limited when a limiter is set
	scrape := router.Group("")
	if limiter != nil {
		scrape.Use(RateLimiter(limiter))
	}
	scrape.POST("/scrape", h.SubmitForm)
	scrape.POST("/api/scrape", h.APIScrape)
}
