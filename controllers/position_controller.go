package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pricewatch_backend/models"
	"pricewatch_backend/services"
)

// PositionController handles position and alert requests
type PositionController struct {
	ledger *services.PositionLedger
}

// NewPositionController creates a new position controller
func NewPositionController(ledger *services.PositionLedger) *PositionController {
	return &PositionController{ledger: ledger}
}

type historicalData struct {
	Ticker   string          `json:"ticker"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Date     *time.Time      `json:"date,omitempty"`
}

type createPositionRequest struct {
	UserID         string           `json:"userId"`
	HistoricalData historicalData   `json:"historicalData"`
	UpperThreshold *decimal.Decimal `json:"upperThreshold,omitempty"`
	LowerThreshold *decimal.Decimal `json:"lowerThreshold,omitempty"`
}

// CreatePosition opens a monitored position
// POST /positions
func (pc *PositionController) CreatePosition(c *gin.Context) {
	var req createPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ref := models.ReferenceQuote{
		Ticker:   req.HistoricalData.Ticker,
		Price:    req.HistoricalData.Price,
		Quantity: req.HistoricalData.Quantity,
	}
	if req.HistoricalData.Date != nil {
		ref.Date = *req.HistoricalData.Date
	}

	position, err := pc.ledger.CreatePosition(req.UserID, ref, req.UpperThreshold, req.LowerThreshold)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusCreated, position)
}

type updatePositionRequest struct {
	PositionID     string           `json:"positionId"`
	UpperThreshold *decimal.Decimal `json:"upperThreshold,omitempty"`
	LowerThreshold *decimal.Decimal `json:"lowerThreshold,omitempty"`
}

// UpdatePosition overwrites a position's thresholds
// PUT /positions
func (pc *PositionController) UpdatePosition(c *gin.Context) {
	var req updatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.PositionID == "" {
		errorResponse(c, http.StatusBadRequest, "positionId is required")
		return
	}

	position, err := pc.ledger.UpdatePositionThresholds(req.PositionID, req.UpperThreshold, req.LowerThreshold)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, position)
}

// DeletePosition removes a position; its alert history remains
// DELETE /positions?positionId=
func (pc *PositionController) DeletePosition(c *gin.Context) {
	positionID := c.Query("positionId")
	if positionID == "" {
		errorResponse(c, http.StatusBadRequest, "positionId is required")
		return
	}

	if err := pc.ledger.DeletePosition(positionID); err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, gin.H{"positionId": positionID})
}

// GetPositions lists a user's positions
// GET /positions?userId=
func (pc *PositionController) GetPositions(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		errorResponse(c, http.StatusBadRequest, "userId is required")
		return
	}

	positions, err := pc.ledger.GetUserPositions(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, gin.H{"positions": positions})
}

// GetAlerts lists a user's alerts with the unread count
// GET /positions/alerts?userId=
func (pc *PositionController) GetAlerts(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		errorResponse(c, http.StatusBadRequest, "userId is required")
		return
	}

	alerts, err := pc.ledger.GetUserAlerts(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := pc.ledger.UnreadAlertCount(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, gin.H{
		"alerts":      alerts,
		"unreadCount": unread,
	})
}

type markAlertReadRequest struct {
	AlertID string `json:"alertId"`
}

// MarkAlertRead flips an alert's read flag, idempotently
// PUT /positions/alerts
func (pc *PositionController) MarkAlertRead(c *gin.Context) {
	var req markAlertReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AlertID == "" {
		errorResponse(c, http.StatusBadRequest, "alertId is required")
		return
	}

	alert, err := pc.ledger.MarkAlertAsRead(req.AlertID)
	if err != nil {
		respondError(c, err)
		return
	}
	successResponse(c, http.StatusOK, alert)
}
