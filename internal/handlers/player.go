package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/game"
	"github.com/omega-realm/pokeidle/internal/logging"
	"github.com/omega-realm/pokeidle/internal/middleware"
	"github.com/omega-realm/pokeidle/internal/models"
)

// PlayerStore loads and creates players
type PlayerStore interface {
	LoadPlayerState(ctx context.Context, playerID int64) (*models.PlayerState, error)
	CreatePlayer(ctx context.Context, state *models.PlayerState) error
}

// LiveState returns the in-memory state of a player with an active session
type LiveState func(playerID int64) (*models.PlayerState, bool)

// Starter is what every new player begins with
type Starter struct {
	SpeciesID int
	Level     int
	ZoneID    int
	Inventory models.Inventory
}

type PlayerHandler struct {
	store   PlayerStore
	catalog game.Catalog
	live    LiveState
	starter Starter
	log     *zap.Logger
}

// NewPlayerHandler builds the player endpoints. live may be nil.
func NewPlayerHandler(store PlayerStore, catalog game.Catalog, live LiveState, starter Starter, log *zap.Logger) *PlayerHandler {
	return &PlayerHandler{
		store:   store,
		catalog: catalog,
		live:    live,
		starter: starter,
		log:     logging.OrNop(log).Named("handlers"),
	}
}

// CreatePlayerRequest represents the request body for player creation
type CreatePlayerRequest struct {
	Username string `json:"username"`
}

// PlayerSuccessResponse represents a success response with player data
type PlayerSuccessResponse struct {
	Message string              `json:"message"`
	State   *models.PlayerState `json:"state"`
}

// GetPlayer returns the authenticated player's state. An active session is the
// freshest copy; otherwise the stored state is returned.
func (h *PlayerHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetPlayerClaims(r)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if h.live != nil {
		if state, ok := h.live(claims.PlayerID); ok {
			middleware.WriteJSON(w, http.StatusOK, state)
			return
		}
	}

	state, err := h.store.LoadPlayerState(r.Context(), claims.PlayerID)
	if errors.Is(err, models.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "No player found for this account")
		return
	}
	if err != nil {
		h.log.Error("player load failed", zap.Int64("player", claims.PlayerID), zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to fetch player")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, state)
}

// CreatePlayer creates the authenticated account's player with its starter Pokemon
func (h *PlayerHandler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetPlayerClaims(r)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreatePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := validateUsername(req.Username); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := NewPlayerState(r.Context(), h.catalog, h.starter, claims.PlayerID, req.Username)
	if err != nil {
		h.log.Error("starter setup failed", zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create player")
		return
	}

	switch err := h.store.CreatePlayer(r.Context(), state); {
	case errors.Is(err, models.ErrUsernameTaken):
		middleware.WriteError(w, http.StatusConflict, "Username already taken")
		return
	case errors.Is(err, models.ErrPlayerExists):
		middleware.WriteError(w, http.StatusConflict, "Account already has a player")
		return
	case err != nil:
		h.log.Error("player create failed", zap.Int64("player", claims.PlayerID), zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create player")
		return
	}

	h.log.Info("player created", zap.Int64("player", claims.PlayerID), zap.String("username", req.Username))
	middleware.WriteJSON(w, http.StatusCreated, PlayerSuccessResponse{
		Message: "Player created successfully",
		State:   state,
	})
}

// NewPlayerState builds the initial state of a player: one starter Pokemon in
// the lead slot, registered in the Pokedex.
func NewPlayerState(ctx context.Context, catalog game.Catalog, starter Starter, playerID int64, username string) (*models.PlayerState, error) {
	species, err := catalog.GetSpecies(ctx, starter.SpeciesID)
	if err != nil {
		return nil, fmt.Errorf("failed to get starter species: %w", err)
	}
	level := max(starter.Level, 1)
	return &models.PlayerState{
		Player: models.Player{
			ID:            playerID,
			Username:      username,
			ZoneID:        starter.ZoneID,
			PreferredBall: models.BallPoke,
			Inventory:     starter.Inventory,
			PokedexCount:  1,
			MaxLevel:      level,
		},
		Party:   []models.Pokemon{game.NewPokemon(uuid.NewString(), species, level)},
		Pokedex: []int{species.ID},
	}, nil
}

// validateUsername validates the player name
func validateUsername(name string) error {
	if len(name) < 3 {
		return fmt.Errorf("username must be at least 3 characters long")
	}
	if len(name) > 50 {
		return fmt.Errorf("username must not exceed 50 characters")
	}
	for _, char := range name {
		if !isValidUsernameChar(char) {
			return fmt.Errorf("username contains invalid characters. Only letters, numbers, underscores, and hyphens are allowed")
		}
	}
	return nil
}

func isValidUsernameChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == '_' ||
		char == '-'
}
