package server

import (
	"errors"
	"net/http"

	"github.com/Alias1177/Aura/internal/service"
	"github.com/Alias1177/Aura/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "aura",
		"status":  "ok",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleLogTrade(c *gin.Context) {
	var in service.TradeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	trade, err := s.assistant.LogTrade(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Trade logged successfully!",
		"trade":   trade,
	})
}

func (s *Server) handleGetTrades(c *gin.Context) {
	trades, err := s.assistant.ListTrades(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) handleTradeSummary(c *gin.Context) {
	summary, err := s.assistant.Summary(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleMarketPrices(c *gin.Context) {
	c.JSON(http.StatusOK, s.assistant.Prices(c.Request.Context()))
}

func (s *Server) handleChat(c *gin.Context) {
	var in service.ChatInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	reply, err := s.assistant.Chat(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (s *Server) handleGenerateAnalysis(c *gin.Context) {
	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	result, err := s.assistant.Analyze(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetAnalyses(c *gin.Context) {
	records, err := s.assistant.ListAnalyses(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// respondError maps service errors onto status codes
func (s *Server) respondError(c *gin.Context, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "fields": ve.Fields})
		return
	}

	s.logger.Error().Err(err).Str("request_id", c.GetString("request_id")).Str("path", c.Request.URL.Path).Msg("Request failed")

	msg := "Internal server error"
	if errors.Is(err, service.ErrAIUnavailable) {
		msg = "Failed to get response from AI. Please check the API key and backend logs."
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
