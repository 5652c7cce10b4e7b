// Package server exposes the JSON admin surface: tracking commands and
// operational status. It is a thin layer over the registry and the
// pipeline; all tracking state lives in storage.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mania-tracker/internal/domain"
	"mania-tracker/internal/osuapi"
	"mania-tracker/internal/repository"
	"mania-tracker/internal/service"

	"github.com/rs/zerolog"
)

type AdminServer struct {
	api      *osuapi.Client
	registry *repository.TrackedPlayerRepository
	dans     *repository.DanRepository
	pipeline *service.Pipeline
	logger   zerolog.Logger
	started  time.Time
}

func NewAdminServer(
	api *osuapi.Client,
	registry *repository.TrackedPlayerRepository,
	dans *repository.DanRepository,
	pipeline *service.Pipeline,
	logger zerolog.Logger,
) *AdminServer {
	return &AdminServer{
		api:      api,
		registry: registry,
		dans:     dans,
		pipeline: pipeline,
		logger:   logger.With().Str("component", "server").Logger(),
		started:  time.Now(),
	}
}

// Handler returns the admin route table.
func (s *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/players", s.handlePlayers)
	mux.HandleFunc("POST /api/track", s.handleTrack)
	mux.HandleFunc("POST /api/untrack", s.handleUntrack)
	mux.HandleFunc("POST /api/flush", s.handleFlush)
	mux.HandleFunc("GET /api/dans", s.handleDanList)
	mux.HandleFunc("POST /api/dans", s.handleDanUpsert)
	mux.HandleFunc("GET /api/rankings", s.handleRankings)
	return mux
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	players, err := s.registry.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":  int64(time.Since(s.started).Seconds()),
		"api_calls":       s.api.Usage(),
		"tracked_players": len(players),
	})
}

type playerView struct {
	UserID      int64    `json:"user_id"`
	Username    string   `json:"username"`
	CountryCode string   `json:"country_code"`
	Channels    []string `json:"channels"`
	Wait        int      `json:"wait"`
	GlobalRank  int64    `json:"global_rank"`
	PP          float64  `json:"pp"`
	UnrankedPP  float64  `json:"unranked_pp"`
	Session     bool     `json:"session_active"`
}

func (s *AdminServer) handlePlayers(w http.ResponseWriter, r *http.Request) {
	var players []domain.TrackedPlayer
	var err error
	if channel := r.URL.Query().Get("channel"); channel != "" {
		players, err = s.registry.ListByChannel(r.Context(), channel)
	} else {
		players, err = s.registry.List(r.Context())
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	views := make([]playerView, 0, len(players))
	for _, p := range players {
		views = append(views, playerView{
			UserID:      p.UserID,
			Username:    p.Username,
			CountryCode: p.CountryCode,
			Channels:    p.Channels,
			Wait:        p.Wait,
			GlobalRank:  p.Stats.GlobalRank,
			PP:          p.Stats.PP,
			UnrankedPP:  p.UnrankedPP,
			Session:     p.Session.Active,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"players": views})
}

type trackRequest struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	ChannelID string `json:"channel_id"`
}

func (s *AdminServer) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ChannelID == "" || (req.UserID == 0 && req.Username == "") {
		s.writeError(w, http.StatusBadRequest, errors.New("channel_id and user_id or username are required"))
		return
	}

	var user *osuapi.User
	var err error
	if req.UserID != 0 {
		user, err = s.api.GetUser(r.Context(), req.UserID)
	} else {
		user, err = s.api.GetUserByName(r.Context(), req.Username)
	}
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	stats := domain.PlayerStats{
		GlobalRank:  user.Statistics.GlobalRank,
		CountryRank: user.Statistics.CountryRank,
		PP:          user.Statistics.PP,
	}
	player := &domain.TrackedPlayer{
		UserID:      user.ID,
		Username:    user.Username,
		CountryCode: user.Country.Code,
		Stats:       stats,
		Prev:        stats,
	}

	isNew, err := s.registry.Track(r.Context(), player, req.ChannelID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if isNew {
		// Seed the store with current top plays so the first polled
		// activities compare against a warm floor and aggregate.
		if err := s.pipeline.ImportBest(r.Context(), player); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", player.UserID).Msg("best-play import failed")
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  player.UserID,
		"username": player.Username,
		"new":      isNew,
	})
}

type untrackRequest struct {
	UserID    int64  `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

func (s *AdminServer) handleUntrack(w http.ResponseWriter, r *http.Request) {
	var req untrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == 0 || req.ChannelID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("user_id and channel_id are required"))
		return
	}

	removed, err := s.registry.Untrack(r.Context(), req.UserID, req.ChannelID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *AdminServer) handleFlush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channel_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ChannelID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("channel_id is required"))
		return
	}

	count, err := s.registry.FlushChannel(r.Context(), req.ChannelID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"flushed": count})
}

func (s *AdminServer) handleDanList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.dans.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	type danView struct {
		MapID       int64   `json:"map_id"`
		Name        string  `json:"name"`
		MinAccuracy float64 `json:"min_accuracy"`
	}
	views := make([]danView, 0, len(entries))
	for _, e := range entries {
		views = append(views, danView{MapID: e.MapID, Name: e.Name, MinAccuracy: e.MinAccuracy})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"dans": views})
}

func (s *AdminServer) handleDanUpsert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MapID       int64   `json:"map_id"`
		Name        string  `json:"name"`
		MinAccuracy float64 `json:"min_accuracy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.MapID == 0 || req.Name == "" || req.MinAccuracy <= 0 || req.MinAccuracy > 1 {
		s.writeError(w, http.StatusBadRequest,
			errors.New("map_id, name and min_accuracy in (0, 1] are required"))
		return
	}

	entry := &domain.DanEntry{MapID: req.MapID, Name: req.Name, MinAccuracy: req.MinAccuracy}
	if err := s.dans.Upsert(r.Context(), entry); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"map_id": entry.MapID})
}

// handleRankings proxies one page of the mania performance ranking,
// optionally filtered by country.
func (s *AdminServer) handleRankings(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, errors.New("page must be a positive integer"))
			return
		}
		page = parsed
	}

	rankings, err := s.api.GetRankings(r.Context(), r.URL.Query().Get("country"), page)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	type rankingView struct {
		UserID     int64   `json:"user_id"`
		Username   string  `json:"username"`
		GlobalRank int64   `json:"global_rank"`
		PP         float64 `json:"pp"`
	}
	views := make([]rankingView, 0, len(rankings.Ranking))
	for _, entry := range rankings.Ranking {
		views = append(views, rankingView{
			UserID:     entry.User.ID,
			Username:   entry.User.Username,
			GlobalRank: entry.GlobalRank,
			PP:         entry.Statistics.PP,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"page": page, "ranking": views})
}

func (s *AdminServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("response encode failed")
	}
}

func (s *AdminServer) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Error().Err(err).Int("status", status).Msg("request failed")
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  strconv.Itoa(status),
	})
}
