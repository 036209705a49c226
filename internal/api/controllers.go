package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"execution-core/internal/order"
)

type buyRequest struct {
	AssetID     string  `json:"asset_id" binding:"required"`
	AmountUSD   float64 `json:"amount_usd" binding:"required"`
	MaxSlippage float64 `json:"max_slippage"`
}

type sellRequest struct {
	AssetID      string  `json:"asset_id" binding:"required"`
	AmountTokens float64 `json:"amount_tokens"` // 0 sells the entire holding
	MaxSlippage  float64 `json:"max_slippage"`
	Reason       string  `json:"reason"`
}

func (s *Server) executeBuy(c *gin.Context) {
	var req buyRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": err.Error()})
		return
	}
	if req.AmountUSD <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_AMOUNT", "error": "amount_usd must be positive"})
		return
	}

	res, err := s.Orch.ExecuteBuy(c.Request.Context(), req.AssetID, req.AmountUSD, req.MaxSlippage)
	if err != nil {
		s.submitError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (s *Server) executeSell(c *gin.Context) {
	var req sellRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYLOAD", "error": err.Error()})
		return
	}
	if req.AmountTokens < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_AMOUNT", "error": "amount_tokens must not be negative"})
		return
	}

	res, err := s.Orch.ExecuteSell(c.Request.Context(), req.AssetID, req.AmountTokens, req.MaxSlippage, req.Reason)
	if err != nil {
		s.submitError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (s *Server) submitError(c *gin.Context, err error) {
	if errors.Is(err, order.ErrClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "SHUTTING_DOWN", "error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"code": "SUBMIT_FAILED", "error": err.Error()})
}

func (s *Server) getActiveOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": s.Orch.ActiveOrders()})
}

func (s *Server) getOrder(c *gin.Context) {
	id := c.Param("id")
	res, ok := s.Orch.OrderStatus(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": "ORDER_NOT_FOUND", "error": "unknown order id"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) cancelOrder(c *gin.Context) {
	id := c.Param("id")
	if !s.Orch.CancelOrder(id) {
		c.JSON(http.StatusConflict, gin.H{"code": "NOT_CANCELLABLE", "error": "order is terminal or unknown"})
		return
	}
	res, _ := s.Orch.OrderStatus(id)
	c.JSON(http.StatusOK, res)
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Orch.ExecutionStats())
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.Stats())
}

func (s *Server) getDegradation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"levels": s.Orch.ExecutionStats().Degradation})
}

func (s *Server) getPriceStrategy(c *gin.Context) {
	asset := c.Param("asset")
	strategy := s.Orch.HandleMissingPrice(c.Request.Context(), asset)
	c.JSON(http.StatusOK, gin.H{"asset_id": asset, "strategy": strategy})
}

func (s *Server) getExecutions(c *gin.Context) {
	if s.Journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "JOURNAL_DISABLED", "error": "execution journal is not enabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := s.Journal.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": rows})
}

func (s *Server) runCleanup(c *gin.Context) {
	removed := s.Orch.Cleanup()
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
