package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gamification-ledger/internal/achievement"
	"github.com/gamification-ledger/internal/challenge"
	"github.com/gamification-ledger/internal/domain"
	"github.com/gamification-ledger/internal/ingest"
	"github.com/gamification-ledger/internal/ledger"
	"github.com/gamification-ledger/internal/progression"
	"github.com/gamification-ledger/internal/verify"
	"github.com/gamification-ledger/internal/wallet"
	"github.com/gamification-ledger/internal/websocket"
)

// BoardStore serves projected leaderboard entries
type BoardStore interface {
	TopEntries(ctx context.Context, scope domain.LeaderboardScope, limit int) ([]domain.LeaderboardEntry, error)
}

// Handler provides HTTP handlers for the gamification API
type Handler struct {
	pipeline     *ingest.Pipeline
	ledger       *ledger.Service
	wallet       *wallet.Service
	progression  *progression.Service
	achievements *achievement.Engine
	challenges   *challenge.Service
	verifier     *verify.Service
	boards       BoardStore
	hub          *websocket.Hub
	adminToken   string
	logger       *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	pipeline *ingest.Pipeline,
	ledgerSvc *ledger.Service,
	walletSvc *wallet.Service,
	progressionSvc *progression.Service,
	achievements *achievement.Engine,
	challenges *challenge.Service,
	verifier *verify.Service,
	boards BoardStore,
	hub *websocket.Hub,
	adminToken string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		pipeline:     pipeline,
		ledger:       ledgerSvc,
		wallet:       walletSvc,
		progression:  progressionSvc,
		achievements: achievements,
		challenges:   challenges,
		verifier:     verifier,
		boards:       boards,
		hub:          hub,
		adminToken:   adminToken,
		logger:       logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Session ledger
		r.Post("/sessions", h.SubmitSession)
		r.Get("/sessions/{sessionID}", h.GetSession)
		r.Post("/sessions/{sessionID}/void", h.VoidSession)

		// Premium status
		r.Post("/events/premium", h.SubmitPremiumStatus)

		// Player state
		r.Route("/players/{playerID}", func(r chi.Router) {
			r.Get("/progression", h.GetProgression)
			r.Get("/wallet", h.GetWallet)
			r.Get("/transactions", h.GetTransactions)
			r.Get("/achievements", h.GetPlayerAchievements)
		})

		// Catalog
		r.Get("/achievements", h.ListAchievements)
		r.Get("/challenges/today", h.GetTodayChallenges)

		// Leaderboards
		r.Get("/leaderboards/{scope}/top", h.GetLeaderboardTop)

		// Verification (admin only)
		r.With(h.requireAdmin).Get("/verify", h.Verify)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, X-Admin-Token")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAdmin guards administrative endpoints behind the configured
// token. A request with no token is unauthenticated; a wrong token is
// forbidden. An empty configured token leaves the endpoint open, which
// is only intended for local development.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get("X-Admin-Token")
		if token == "" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}
		if token != h.adminToken {
			h.writeError(w, http.StatusForbidden, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// SubmitSession ingests one session-completed event through the full
// pipeline. Replaying the same session id is a harmless no-op.
func (h *Handler) SubmitSession(w http.ResponseWriter, r *http.Request) {
	var event domain.SessionCompletedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.pipeline.HandleSessionCompleted(r.Context(), &event); err != nil {
		if domain.IsValidationError(err) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to ingest session", "session_id", event.SessionID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, APIResponse{
		Success: true,
		Data:    map[string]string{"status": "accepted", "session_id": event.SessionID},
	})
}

// GetSession returns one ledger entry
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.ledger.Get(r.Context(), sessionID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get session", "session_id", sessionID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, session)
}

// VoidSession marks a ledger entry voided
func (h *Handler) VoidSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.ledger.Void(r.Context(), sessionID); err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to void session", "session_id", sessionID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "voided", "session_id": sessionID})
}

// SubmitPremiumStatus records a premium grant or revocation
func (h *Handler) SubmitPremiumStatus(w http.ResponseWriter, r *http.Request) {
	var event domain.PremiumStatusEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.pipeline.HandlePremiumStatus(r.Context(), &event); err != nil {
		if domain.IsValidationError(err) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to record premium status", "player_id", event.PlayerID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "recorded"})
}

// GetProgression returns a player's progression aggregate
func (h *Handler) GetProgression(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	prog, err := h.progression.Get(r.Context(), playerID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get progression", "player_id", playerID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, prog)
}

// GetWallet returns a player's points wallet
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	wal, err := h.wallet.Wallet(r.Context(), playerID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			// Players with no transactions yet have an empty wallet.
			h.writeSuccess(w, &domain.PointsWallet{PlayerID: playerID})
			return
		}
		h.logger.Error("failed to get wallet", "player_id", playerID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, wal)
}

// GetTransactions returns a player's most recent transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	transactions, err := h.wallet.Transactions(r.Context(), playerID, limit)
	if err != nil {
		h.logger.Error("failed to list transactions", "player_id", playerID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, transactions)
}

// GetPlayerAchievements returns the player-facing achievement list
func (h *Handler) GetPlayerAchievements(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	views, err := h.achievements.ListForPlayer(r.Context(), playerID)
	if err != nil {
		h.logger.Error("failed to list player achievements", "player_id", playerID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, views)
}

// ListAchievements returns every active achievement definition
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	achievements, err := h.achievements.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list achievements", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, achievements)
}

// GetTodayChallenges returns the currently active challenge set
func (h *Handler) GetTodayChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.challenges.ActiveNow(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("failed to list challenges", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, challenges)
}

// GetLeaderboardTop returns the top of one projected leaderboard. The
// scope is the canonical "metric:period[:gameId]" key.
func (h *Handler) GetLeaderboardTop(w http.ResponseWriter, r *http.Request) {
	scope, err := domain.ParseScope(chi.URLParam(r, "scope"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	entries, err := h.boards.TopEntries(r.Context(), scope, limit)
	if err != nil {
		h.logger.Error("failed to read leaderboard", "scope", scope.Key(), "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, entries)
}

// Verify runs a consistency scan and returns the health report. A scan
// that cannot complete returns 503; a completed scan always returns
// 200, even when it reports critical.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	opts := verify.Options{
		PlayerID: r.URL.Query().Get("playerId"),
		Detailed: r.URL.Query().Get("detailed") == "true",
	}

	report, err := h.verifier.Verify(r.Context(), opts)
	if err != nil {
		if errors.Is(err, domain.ErrVerificationFailed) {
			h.logger.Error("verification scan failed", "error", err)
			h.writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		h.logger.Error("verification error", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}
