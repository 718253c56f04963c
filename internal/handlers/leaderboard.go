package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/aggregate"
	"github.com/omega-realm/pokeidle/internal/logging"
	"github.com/omega-realm/pokeidle/internal/middleware"
	"github.com/omega-realm/pokeidle/internal/models"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

type LeaderboardHandler struct {
	agg *aggregate.Aggregator
	log *zap.Logger
}

func NewLeaderboardHandler(agg *aggregate.Aggregator, log *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{agg: agg, log: logging.OrNop(log).Named("handlers")}
}

// LeaderboardResponse is one board page
type LeaderboardResponse struct {
	Type    models.LeaderboardType    `json:"type"`
	Entries []models.LeaderboardEntry `json:"entries"`
}

func parseBoard(r *http.Request) (models.LeaderboardType, bool) {
	board := models.LeaderboardType(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))))
	if board == "" {
		board = models.LeaderboardPokedex
	}
	return board, models.IsValidLeaderboard(board)
}

// GetLeaderboard returns the top of a board: GET /api/leaderboard?type=catches&limit=10
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, ok := parseBoard(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid leaderboard type. Valid types are: pokedex, catches, max_level")
		return
	}

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	entries, err := h.agg.Leaderboard(r.Context(), board, limit)
	if err != nil {
		h.log.Error("leaderboard query failed", zap.String("board", string(board)), zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to fetch leaderboard")
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	middleware.WriteJSON(w, http.StatusOK, LeaderboardResponse{Type: board, Entries: entries})
}

// GetRank returns the authenticated player's entry on a board
func (h *LeaderboardHandler) GetRank(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetPlayerClaims(r)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	board, ok := parseBoard(r)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid leaderboard type. Valid types are: pokedex, catches, max_level")
		return
	}

	entry, err := h.agg.Rank(r.Context(), board, claims.PlayerID)
	if errors.Is(err, models.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Player is not ranked on this board")
		return
	}
	if err != nil {
		h.log.Error("rank query failed", zap.Int64("player", claims.PlayerID), zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to fetch rank")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, entry)
}
