// Package announce is the seam between the tracking core and the chat
// platform. Rendering and transport live behind Notifier; the core
// never formats messages.
package announce

import (
	"context"

	"mania-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// Notifier delivers one announcement to one destination channel.
// Implementations are fire-and-forget from the pipeline's point of
// view; a delivery error is logged, never retried.
type Notifier interface {
	Announce(ctx context.Context, channelID string, ann *domain.Announcement) error
}

// LogNotifier writes announcements to the operational log. It is the
// default sink when no chat transport is wired in.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "announce").Logger()}
}

func (n *LogNotifier) Announce(ctx context.Context, channelID string, ann *domain.Announcement) error {
	event := n.logger.Info().
		Str("channel", channelID).
		Str("category", string(ann.Category)).
		Int("position", ann.Position).
		Int64("user_id", ann.UserID).
		Str("username", ann.Username).
		Int64("map_id", ann.Play.MapID).
		Float64("pp", ann.Play.PP).
		Bool("is_new", ann.IsNew)
	if ann.PersonalBest != nil {
		event = event.Float64("pp_diff", ann.PersonalBest.PPDiff).Int64("score_diff", ann.PersonalBest.ScoreDiff)
	}
	if ann.Dan != nil && ann.Dan.IsDan {
		event = event.Str("dan", ann.Dan.Name).Bool("dan_passed", ann.Dan.Passed)
	}
	event.Msg("play announced")
	return nil
}
