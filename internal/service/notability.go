package service

import (
	"context"
	"fmt"

	"mania-tracker/internal/announce"
	"mania-tracker/internal/config"
	"mania-tracker/internal/constants"
	"mania-tracker/internal/domain"
	"mania-tracker/internal/osuapi"
	"mania-tracker/internal/rating"
	"mania-tracker/internal/repository"
	"mania-tracker/internal/seen"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ActivitySource is the slice of the osu! API the pipeline consumes.
type ActivitySource interface {
	GetScores(ctx context.Context, userID int64, kind string, limit int) ([]osuapi.Score, error)
	GetBeatmap(ctx context.Context, mapID int64) (*osuapi.Beatmap, error)
	GetBeatmapAttributes(ctx context.Context, mapID int64, mods domain.ModSet) (*osuapi.BeatmapAttributes, error)
}

// Pipeline decides whether one freshly fetched play is worth storing
// and announcing. It is the only writer of the play store.
type Pipeline struct {
	api      ActivitySource
	plays    *repository.PlayRepository
	registry *repository.TrackedPlayerRepository
	dans     *repository.DanRepository
	ring     *seen.Ring
	notifier announce.Notifier
	cfg      *config.Config
	logger   zerolog.Logger
}

func NewPipeline(
	api ActivitySource,
	plays *repository.PlayRepository,
	registry *repository.TrackedPlayerRepository,
	dans *repository.DanRepository,
	ring *seen.Ring,
	notifier announce.Notifier,
	cfg *config.Config,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		api:      api,
		plays:    plays,
		registry: registry,
		dans:     dans,
		ring:     ring,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// Process runs one activity record through the notability pipeline.
// The seen-ring gate makes it idempotent: a score fetched twice mutates
// the store and announces at most once. The returned bool reports
// whether the activity passed the gate and was actually handled. Any
// error means nothing was written and the activity will be retried on
// a later poll.
func (p *Pipeline) Process(ctx context.Context, player *domain.TrackedPlayer, score osuapi.Score) (bool, error) {
	fingerprint := seen.Record{Score: score.Score, MapID: score.Beatmap.ID, UserID: player.UserID}
	if p.ring.Contains(fingerprint) {
		return false, nil
	}

	play, err := p.resolve(ctx, player, score)
	if err != nil {
		return false, err
	}

	// Personal-best detection across the player's stored plays on this
	// map, matched per exact mod set.
	existing, err := p.plays.Find(ctx, repository.PlayFilter{UserID: player.UserID, MapID: play.MapID})
	if err != nil {
		return false, err
	}

	isNew := true
	var personalBest *domain.PersonalBest
	for _, prev := range existing {
		if !prev.Mods.Equal(play.Mods) {
			continue
		}
		isNew = false
		if play.Score > prev.Score {
			personalBest = &domain.PersonalBest{
				PPDiff:       play.PP - prev.PP,
				ScoreDiff:    play.Score - prev.Score,
				AccuracyDiff: play.Accuracy - prev.Accuracy,
			}
		}
	}

	if !isNew && personalBest == nil {
		// Known play, not beaten. Nothing to do.
		p.ring.Add(fingerprint)
		return true, nil
	}

	if play.PP > p.cfg.MaxAllowedPP {
		p.logger.Warn().
			Int64("user_id", player.UserID).
			Int64("map_id", play.MapID).
			Float64("pp", play.PP).
			Msg("rating above sanity ceiling, rejected")
		p.ring.Add(fingerprint)
		return true, nil
	}

	dan := p.evaluateDan(ctx, play)
	if dan != nil && dan.IsDan {
		play.DanPassed = dan.Passed
		play.DanName = dan.Name
	}

	if err := p.plays.Upsert(ctx, play); err != nil {
		return false, err
	}

	previousAggregate, err := p.plays.RecomputeUnrankedPP(ctx, player.UserID)
	if err != nil {
		return false, err
	}
	floor, err := p.plays.RankedFloor(ctx, player.UserID)
	if err != nil {
		return false, err
	}

	ranked := play.Category == domain.CategoryRanked
	passedDan := dan != nil && dan.IsDan && dan.Passed
	if !ranked && play.PP < floor && (dan == nil || !dan.IsDan) {
		// High-volume low-value unranked plays stay in the store but
		// are not worth a message.
		p.logger.Debug().
			Int64("user_id", player.UserID).
			Int64("map_id", play.MapID).
			Float64("pp", play.PP).
			Float64("floor", floor).
			Msg("below ranked floor, announcement suppressed")
		p.ring.Add(fingerprint)
		return true, nil
	}

	positionCategory := domain.CategoryAll
	if ranked {
		positionCategory = domain.CategoryRanked
	}
	position, err := p.plays.Position(ctx, player.UserID, positionCategory, play.PP)
	if err != nil {
		return false, err
	}

	ann := &domain.Announcement{
		Category:     play.Category,
		Position:     position,
		UserID:       player.UserID,
		Username:     player.Username,
		Play:         play,
		IsNew:        isNew,
		PersonalBest: personalBest,
		Dan:          dan,
	}

	if ranked {
		ann.Ranked = &domain.RankDeltas{
			GlobalRankBefore:  player.Prev.GlobalRank,
			GlobalRankAfter:   player.Stats.GlobalRank,
			CountryRankBefore: player.Prev.CountryRank,
			CountryRankAfter:  player.Stats.CountryRank,
			PPDiff:            player.Stats.PP - player.Prev.PP,
			SessionPP:         player.Session.PP,
			SessionGlobalRank: player.Session.GlobalRank,
		}
	} else {
		fresh, err := p.registry.Get(ctx, player.UserID)
		if err != nil {
			return false, err
		}
		ann.UnrankedPP = fresh.UnrankedPP
		ann.UnrankedPPDiff = fresh.UnrankedPP - previousAggregate
	}

	for _, channel := range player.Channels {
		if err := p.notifier.Announce(ctx, channel, ann); err != nil {
			p.logger.Error().Err(err).Str("channel", channel).Msg("announcement delivery failed")
		}
	}

	p.logger.Info().
		Int64("user_id", player.UserID).
		Int64("map_id", play.MapID).
		Str("category", string(play.Category)).
		Float64("pp", play.PP).
		Int("position", position).
		Bool("is_new", isNew).
		Bool("dan_passed", passedDan).
		Msg("notable play processed")

	p.ring.Add(fingerprint)
	return true, nil
}

// resolve normalizes the raw API score into the canonical Play value:
// mod-adjusted difficulty, locally computed rating when the reported
// one is missing or implausible, and the category classification.
func (p *Pipeline) resolve(ctx context.Context, player *domain.TrackedPlayer, score osuapi.Score) (*domain.Play, error) {
	mods := domain.NewModSet(score.Mods)

	beatmap := score.Beatmap
	starRating := beatmap.DifficultyRating
	maxCombo := beatmap.MaxCombo

	needAttributes := mods.AltersDifficulty()
	needBeatmap := beatmap.CountCircles+beatmap.CountSliders+beatmap.CountSpinners == 0

	if needAttributes || needBeatmap {
		fetchCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		defer cancel()
		g, gCtx := errgroup.WithContext(fetchCtx)
		var attrs *osuapi.BeatmapAttributes
		var full *osuapi.Beatmap

		if needAttributes {
			g.Go(func() error {
				var err error
				attrs, err = p.api.GetBeatmapAttributes(gCtx, beatmap.ID, mods)
				return err
			})
		}
		if needBeatmap {
			g.Go(func() error {
				var err error
				full, err = p.api.GetBeatmap(gCtx, beatmap.ID)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("failed to resolve map %d: %w", beatmap.ID, err)
		}
		if full != nil {
			beatmap = *full
		}
		if attrs != nil {
			starRating = attrs.StarRating
			if attrs.MaxCombo > 0 {
				maxCombo = attrs.MaxCombo
			}
		}
	}

	objects := rating.MapObjects{
		Circles:  beatmap.CountCircles,
		Sliders:  beatmap.CountSliders,
		Spinners: beatmap.CountSpinners,
	}
	hits := domain.HitStats{
		Geki:     score.Statistics.CountGeki,
		Count300: score.Statistics.Count300,
		Katu:     score.Statistics.CountKatu,
		Count100: score.Statistics.Count100,
		Count50:  score.Statistics.Count50,
		Miss:     score.Statistics.CountMiss,
	}

	pp := 0.0
	if score.PP != nil {
		pp = *score.PP
	}
	if pp < constants.MinReportedPP {
		pp = rating.Calculate(rating.Input{
			StarRating: starRating,
			Accuracy:   score.Accuracy,
			Mods:       mods,
			Objects:    objects,
			Hits:       &hits,
		})
	}
	maxPP := rating.CalculateMax(starRating, objects.Total(), mods)

	return &domain.Play{
		UserID:     player.UserID,
		MapID:      beatmap.ID,
		Mods:       mods,
		Title:      score.Beatmapset.Title,
		Creator:    score.Beatmapset.Creator,
		Version:    beatmap.Version,
		KeyCount:   int(beatmap.CS),
		Score:      score.Score,
		Combo:      score.MaxCombo,
		MaxCombo:   maxCombo,
		Accuracy:   score.Accuracy,
		Hits:       hits,
		PP:         pp,
		MaxPP:      maxPP,
		StarRating: starRating,
		Category:   domain.CategoryFromRankedStatus(beatmap.Ranked),
		PlayedAt:   score.CreatedAt,
	}, nil
}

// disqualifyingMods void a dan attempt: safety nets and slowdowns.
var disqualifyingMods = []string{"NF", "HT", "DC", "EZ"}

func (p *Pipeline) evaluateDan(ctx context.Context, play *domain.Play) *domain.DanResult {
	entry, err := p.dans.Get(ctx, play.MapID)
	if err != nil {
		// A failed lookup only costs the dan marker, not the play.
		p.logger.Warn().Err(err).Int64("map_id", play.MapID).Msg("dan lookup failed")
		return nil
	}
	if entry == nil {
		return &domain.DanResult{IsDan: false}
	}

	result := &domain.DanResult{IsDan: true, Name: entry.Name}
	if play.Mods.ContainsAny(disqualifyingMods...) {
		return result
	}
	result.Passed = play.Accuracy >= entry.MinAccuracy
	return result
}

// ImportBest seeds the play store with a newly tracked player's
// current top plays so the ranked floor and aggregate start warm.
// Nothing is announced and the seen ring is untouched.
func (p *Pipeline) ImportBest(ctx context.Context, player *domain.TrackedPlayer) error {
	best, err := p.api.GetScores(ctx, player.UserID, "best", constants.BestImportLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch best plays: %w", err)
	}

	for _, score := range best {
		play, err := p.resolve(ctx, player, score)
		if err != nil {
			p.logger.Warn().Err(err).Int64("map_id", score.Beatmap.ID).Msg("skipping best play import")
			continue
		}
		if err := p.plays.Upsert(ctx, play); err != nil {
			return err
		}
	}

	if _, err := p.plays.RecomputeUnrankedPP(ctx, player.UserID); err != nil {
		return err
	}

	p.logger.Info().Int64("user_id", player.UserID).Int("count", len(best)).Msg("top plays imported")
	return nil
}
