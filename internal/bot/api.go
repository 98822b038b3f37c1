package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"stellar-harvest-bot-go/internal/config"
)

// APIServer exposes the bot's control surface over HTTP for the dashboard.
type APIServer struct {
	server *http.Server
	bot    *Bot
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer on the configured port.
func NewAPIServer(bot *Bot, port int, logger *zap.Logger) *APIServer {
	s := &APIServer{
		bot:    bot,
		logger: logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/status", s.statusHandler)
	mux.HandleFunc("/api/start", s.startHandler)
	mux.HandleFunc("/api/stop", s.stopHandler)
	mux.HandleFunc("/api/config", s.configHandler)
	mux.HandleFunc("/api/transactions", s.transactionsHandler)
	mux.HandleFunc("/api/performance", s.performanceHandler)
	mux.HandleFunc("/api/manual-harvest", s.manualHarvestHandler)
	mux.HandleFunc("/api/backtest", s.backtestHandler)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.bot.GetStatus())
}

func (s *APIServer) startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.bot.Start())
}

func (s *APIServer) stopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.bot.Stop())
}

func (s *APIServer) configHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.bot.Config())
	case http.MethodPost:
		var newCfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
			s.writeJSON(w, Result{Success: false, Message: "invalid config document: " + err.Error()})
			return
		}
		s.writeJSON(w, s.bot.SetConfig(newCfg))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *APIServer) transactionsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	s.writeJSON(w, map[string]any{
		"transactions": s.bot.GetTransactionHistory(limit),
	})
}

func (s *APIServer) performanceHandler(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	s.writeJSON(w, map[string]any{
		"performance": s.bot.GetPerformanceHistory(days),
	})
}

type assetRequest struct {
	Asset string `json:"asset"`
	Days  int    `json:"days"`
}

func (s *APIServer) manualHarvestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req assetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, Result{Success: false, Message: "invalid request: " + err.Error()})
		return
	}
	s.writeJSON(w, s.bot.ManualHarvest(req.Asset))
}

func (s *APIServer) backtestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req assetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, Result{Success: false, Message: "invalid request: " + err.Error()})
		return
	}
	if req.Days <= 0 {
		req.Days = 30
	}
	result, err := s.bot.Backtest(req.Asset, req.Days)
	if err != nil {
		s.writeJSON(w, map[string]any{"success": false, "message": err.Error()})
		return
	}
	s.writeJSON(w, map[string]any{"success": true, "result": result})
}
