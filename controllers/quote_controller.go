package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pricewatch_backend/services"
)

// QuoteController exposes on-demand quotes and provider status
type QuoteController struct {
	quotes services.QuoteSource
}

// NewQuoteController creates a new quote controller
func NewQuoteController(quotes services.QuoteSource) *QuoteController {
	return &QuoteController{quotes: quotes}
}

// GetQuotes fetches live quotes for a comma-separated ticker list. A
// request that hits the upstream quota surfaces as 429.
// GET /quotes?tickers=AAA,BBB
func (qc *QuoteController) GetQuotes(c *gin.Context) {
	raw := c.Query("tickers")
	if raw == "" {
		errorResponse(c, http.StatusBadRequest, "tickers is required")
		return
	}

	tickers := make([]string, 0)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		errorResponse(c, http.StatusBadRequest, "tickers is required")
		return
	}

	quotes, err := qc.quotes.GetBatchQuotes(c.Request.Context(), tickers)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, gin.H{"quotes": quotes})
}

// GetStatus returns the quota snapshot and a live health probe
// GET /quotes/status
func (qc *QuoteController) GetStatus(c *gin.Context) {
	successResponse(c, http.StatusOK, gin.H{
		"quota":  qc.quotes.GetAPIStatus(),
		"health": qc.quotes.HealthCheck(c.Request.Context()),
	})
}
