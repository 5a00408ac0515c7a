package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Alias1177/Aura/internal/service"
	"github.com/Alias1177/Aura/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Assistant is the use-case surface exposed over HTTP
type Assistant interface {
	LogTrade(ctx context.Context, in service.TradeInput) (models.TradeRecord, error)
	ListTrades(ctx context.Context) ([]models.TradeRecord, error)
	Summary(ctx context.Context) (models.TradeSummary, error)
	Prices(ctx context.Context) map[string]models.PriceQuote
	Chat(ctx context.Context, in service.ChatInput) (string, error)
	Analyze(ctx context.Context, req models.AnalysisRequest) (service.AnalysisResult, error)
	ListAnalyses(ctx context.Context) ([]models.AnalysisRecord, error)
}

// Server is the HTTP front end of the assistant
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	assistant  Assistant
	logger     zerolog.Logger
}

// New creates a server listening on addr
func New(addr string, assistant Assistant) *Server {
	s := &Server{
		router:    gin.New(),
		assistant: assistant,
		logger:    log.With().Str("component", "http_server").Logger(),
	}

	s.router.Use(gin.Recovery(), requestID(), accessLog(s.logger), cors())
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      90 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/log_trade", s.handleLogTrade)
	s.router.GET("/get_trades", s.handleGetTrades)
	s.router.GET("/get_trade_summary", s.handleTradeSummary)

	s.router.GET("/all_market_prices", s.handleMarketPrices)

	s.router.POST("/chat", s.handleChat)
	s.router.POST("/generate_analysis", s.handleGenerateAnalysis)
	s.router.GET("/get_analyses", s.handleGetAnalyses)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
