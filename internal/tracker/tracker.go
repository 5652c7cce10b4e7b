// Package tracker runs the polling scheduler: one player considered
// per tick, round-robin over a registry snapshot.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"mania-tracker/internal/config"
	"mania-tracker/internal/constants"
	"mania-tracker/internal/domain"
	"mania-tracker/internal/osuapi"
	"mania-tracker/internal/repository"
	"mania-tracker/internal/service"

	"github.com/rs/zerolog"
)

// StatsSource is the slice of the osu! API the scheduler consumes.
type StatsSource interface {
	GetUser(ctx context.Context, userID int64) (*osuapi.User, error)
	GetScores(ctx context.Context, userID int64, kind string, limit int) ([]osuapi.Score, error)
}

// Tracker is single-goroutine by construction: snapshot and cursor are
// only touched from Run's tick loop.
type Tracker struct {
	api      StatsSource
	registry *repository.TrackedPlayerRepository
	pipeline *service.Pipeline
	cfg      *config.Config
	logger   zerolog.Logger

	snapshot []domain.TrackedPlayer
	cursor   int
}

func New(
	api StatsSource,
	registry *repository.TrackedPlayerRepository,
	pipeline *service.Pipeline,
	cfg *config.Config,
	logger zerolog.Logger,
) *Tracker {
	return &Tracker{
		api:      api,
		registry: registry,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger.With().Str("component", "tracker").Logger(),
	}
}

// Run drives the scheduler until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info().Dur("rate", t.cfg.TrackerRate).Msg("scheduler started")
	ticker := time.NewTicker(t.cfg.TrackerRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			t.safeTick(ctx)
		}
	}
}

// safeTick isolates one tick: a panic or error in a single poll must
// not take the scheduler down.
func (t *Tracker) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Msg("tick panicked")
		}
	}()
	if err := t.tick(ctx); err != nil && ctx.Err() == nil {
		t.logger.Error().Err(err).Msg("tick failed")
	}
}

// tick advances the cursor until it finds a player due for a poll,
// decrementing and persisting wait counters along the way. The advance
// budget keeps a registry full of waiting players from spinning the
// cursor forever within one tick.
func (t *Tracker) tick(ctx context.Context) error {
	for attempts := 0; attempts < constants.WaitRetryBudget; attempts++ {
		if t.cursor >= len(t.snapshot) {
			players, err := t.registry.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to reload registry snapshot: %w", err)
			}
			t.snapshot = players
			t.cursor = 0
			if len(players) == 0 {
				return nil
			}
		}

		player := &t.snapshot[t.cursor]
		t.cursor++

		player.Wait--
		if player.Wait > 0 {
			if err := t.registry.UpdateWait(ctx, player.UserID, player.Wait); err != nil {
				t.logger.Warn().Err(err).Int64("user_id", player.UserID).Msg("wait persist failed")
			}
			continue
		}
		return t.poll(ctx, player)
	}
	return nil
}

// poll refreshes one player's stats, manages their session window, and
// feeds each recent activity through the notability pipeline.
func (t *Tracker) poll(ctx context.Context, player *domain.TrackedPlayer) error {
	fetchCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	user, err := t.api.GetUser(fetchCtx, player.UserID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to fetch user %d: %w", player.UserID, err)
	}
	player.Username = user.Username
	player.CountryCode = user.Country.Code
	player.Prev = player.Stats
	player.Stats = domain.PlayerStats{
		GlobalRank:  user.Statistics.GlobalRank,
		CountryRank: user.Statistics.CountryRank,
		PP:          user.Statistics.PP,
	}

	now := time.Now()
	elapsed := 0.0
	if player.Session.Active {
		elapsed = now.Sub(player.Session.StartedAt).Hours()
		if elapsed >= t.cfg.SessionEndHours {
			t.logger.Info().
				Int64("user_id", player.UserID).
				Float64("session_pp", player.Session.PP).
				Msg("session ended")
			player.Session = domain.Session{}
			elapsed = 0
		}
	}
	player.Wait = ComputeWait(elapsed, t.cfg.WaitCycleHours)

	fetchCtx, cancel = context.WithTimeout(ctx, constants.ExternalAPITimeout)
	scores, err := t.api.GetScores(fetchCtx, player.UserID, "recent", constants.RecentActivityLimit)
	cancel()
	if err != nil {
		// Persist the stats refresh even when the activity fetch fails;
		// the next poll picks up where this one left off.
		if uerr := t.registry.Update(ctx, player); uerr != nil && !errors.Is(uerr, repository.ErrPlayerNotTracked) {
			t.logger.Warn().Err(uerr).Int64("user_id", player.UserID).Msg("registry update failed")
		}
		return fmt.Errorf("failed to fetch recent scores for %d: %w", player.UserID, err)
	}

	if len(scores) > 0 {
		if !player.Session.Active {
			player.Session.Active = true
			player.Session.StartedAt = now
			player.Wait = 1
		}
		player.Session.PP += player.Stats.PP - player.Prev.PP
		player.Session.GlobalRank += player.Prev.GlobalRank - player.Stats.GlobalRank
		player.Session.CountryRank += player.Prev.CountryRank - player.Stats.CountryRank
	}

	if err := t.registry.Update(ctx, player); err != nil {
		if errors.Is(err, repository.ErrPlayerNotTracked) {
			// Untracked between snapshot and poll.
			return nil
		}
		return err
	}

	for _, score := range scores {
		handled, err := t.pipeline.Process(ctx, player, score)
		if err != nil {
			t.logger.Warn().Err(err).
				Int64("user_id", player.UserID).
				Int64("map_id", score.Beatmap.ID).
				Msg("activity processing failed")
			continue
		}
		if !handled {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.cfg.AnnounceDelay):
		}
	}
	return nil
}

// ComputeWait converts elapsed session hours into the number of poll
// cycles to wait before the next refresh. An idle player (no active
// session) is polled every cycle; the longer a session runs, the more
// cycles are skipped.
func ComputeWait(elapsedHours, cycleHours float64) int {
	if elapsedHours <= 0 || cycleHours <= 0 {
		return 1
	}
	return 1 + int(math.Ceil(elapsedHours/cycleHours))
}
