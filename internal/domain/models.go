package domain

import (
	"time"
)

// Category classifies a play by its map's ranked status.
type Category string

const (
	CategoryRanked    Category = "ranked"
	CategoryQualified Category = "qualified"
	CategoryLoved     Category = "loved"
	CategoryUnranked  Category = "unranked"
	// CategoryAll is a query-only pseudo category matching everything.
	CategoryAll Category = "all"
)

// CategoryFromRankedStatus maps the osu! ranked-status code to a
// category. 1 ranked, 2 approved, 3 qualified, 4 loved, else unranked.
func CategoryFromRankedStatus(status int) Category {
	switch status {
	case 1, 2:
		return CategoryRanked
	case 3:
		return CategoryQualified
	case 4:
		return CategoryLoved
	default:
		return CategoryUnranked
	}
}

// HitStats is the osu!mania hit-count breakdown of one play.
type HitStats struct {
	Geki     int // MAX (320)
	Count300 int
	Katu     int // 200
	Count100 int
	Count50  int
	Miss     int
}

// Total is the number of judged objects.
func (h HitStats) Total() int {
	return h.Geki + h.Count300 + h.Katu + h.Count100 + h.Count50 + h.Miss
}

// Play is the best known result for one (player, map, mod set) triple.
type Play struct {
	ID         string
	UserID     int64
	MapID      int64
	Mods       ModSet
	Title      string
	Creator    string
	Version    string
	KeyCount   int
	Score      int64
	Combo      int
	MaxCombo   int
	Accuracy   float64 // 0..1
	Hits       HitStats
	PP         float64
	MaxPP      float64
	StarRating float64
	Category   Category
	DanPassed  bool
	DanName    string
	PlayedAt   time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PlayerStats is the cached snapshot of a player's external statistics.
type PlayerStats struct {
	GlobalRank  int64
	CountryRank int64
	PP          float64
}

// Session is a bounded window of continuous tracked activity used for
// short-term delta reporting.
type Session struct {
	Active      bool
	StartedAt   time.Time
	PP          float64
	GlobalRank  int64
	CountryRank int64
}

// TrackedPlayer is a player under observation by the scheduler.
type TrackedPlayer struct {
	UserID      int64
	Username    string
	CountryCode string
	Channels    []string
	// Wait is the number of cycles until the next stats refresh.
	Wait int
	// Stats is the latest fetched snapshot, Prev the one cached just
	// before it. Deltas are reported between the two.
	Stats      PlayerStats
	Prev       PlayerStats
	UnrankedPP float64
	Session    Session
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasChannel reports whether the player is tracked in the channel.
func (p *TrackedPlayer) HasChannel(channelID string) bool {
	for _, c := range p.Channels {
		if c == channelID {
			return true
		}
	}
	return false
}

// DanEntry marks a map as a clear-condition ("dan") certification target.
type DanEntry struct {
	MapID       int64
	Name        string
	MinAccuracy float64 // 0..1
}

// DanResult is the outcome of evaluating a play against a dan entry.
type DanResult struct {
	IsDan  bool
	Passed bool
	Name   string
}

// PersonalBest carries the deltas of a play that beat a stored one.
type PersonalBest struct {
	PPDiff       float64
	ScoreDiff    int64
	AccuracyDiff float64
}

// RankDeltas describes rank and rating movement for a ranked play.
type RankDeltas struct {
	GlobalRankBefore  int64
	GlobalRankAfter   int64
	CountryRankBefore int64
	CountryRankAfter  int64
	PPDiff            float64
	SessionPP         float64
	SessionGlobalRank int64
}

// Announcement is the fully annotated play handed to the rendering
// collaborator. Formatting is the collaborator's concern.
type Announcement struct {
	Category     Category
	Position     int
	UserID       int64
	Username     string
	Play         *Play
	IsNew        bool
	PersonalBest *PersonalBest
	Dan          *DanResult
	// Ranked plays carry rank deltas, others the aggregate movement.
	Ranked         *RankDeltas
	UnrankedPP     float64
	UnrankedPPDiff float64
}
