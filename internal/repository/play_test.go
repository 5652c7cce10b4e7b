package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"mania-tracker/internal/domain"

	"github.com/rs/zerolog"
)

func testPlay(userID, mapID int64, score int64, pp float64, category domain.Category, mods []string) *domain.Play {
	return &domain.Play{
		UserID:     userID,
		MapID:      mapID,
		Mods:       domain.NewModSet(mods),
		Title:      "Test Map",
		Creator:    "mapper",
		Version:    "4K Insane",
		KeyCount:   4,
		Score:      score,
		Combo:      800,
		MaxCombo:   1000,
		Accuracy:   0.97,
		PP:         pp,
		MaxPP:      pp * 1.2,
		StarRating: 4.5,
		Category:   category,
		PlayedAt:   time.Now(),
	}
}

func TestUpsertReplacesOnlyHigherScore(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlayRepository(db, zerolog.Nop())
	ctx := context.Background()

	if err := repo.Upsert(ctx, testPlay(1, 10, 100_000, 50, domain.CategoryRanked, nil)); err != nil {
		t.Fatalf("initial upsert failed: %v", err)
	}

	// Lower score: row must stay untouched.
	if err := repo.Upsert(ctx, testPlay(1, 10, 90_000, 60, domain.CategoryRanked, nil)); err != nil {
		t.Fatalf("lower-score upsert failed: %v", err)
	}
	plays, err := repo.Find(ctx, PlayFilter{UserID: 1, MapID: 10})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(plays) != 1 || plays[0].Score != 100_000 {
		t.Fatalf("after lower-score upsert got %d plays, score %d; want 1 play with 100000", len(plays), plays[0].Score)
	}

	// Higher score: row must be replaced.
	if err := repo.Upsert(ctx, testPlay(1, 10, 150_000, 70, domain.CategoryRanked, nil)); err != nil {
		t.Fatalf("higher-score upsert failed: %v", err)
	}
	plays, err = repo.Find(ctx, PlayFilter{UserID: 1, MapID: 10})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(plays) != 1 || plays[0].Score != 150_000 || plays[0].PP != 70 {
		t.Fatalf("after higher-score upsert got %+v, want score 150000 pp 70", plays[0])
	}
}

func TestUpsertKeysOnModSet(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlayRepository(db, zerolog.Nop())
	ctx := context.Background()

	if err := repo.Upsert(ctx, testPlay(1, 10, 100_000, 50, domain.CategoryRanked, nil)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := repo.Upsert(ctx, testPlay(1, 10, 90_000, 40, domain.CategoryRanked, []string{"MR"})); err != nil {
		t.Fatalf("modded upsert failed: %v", err)
	}

	plays, err := repo.Find(ctx, PlayFilter{UserID: 1, MapID: 10})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(plays) != 2 {
		t.Fatalf("got %d plays, want one per mod set", len(plays))
	}
}

func TestFindFiltersByCategory(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlayRepository(db, zerolog.Nop())
	ctx := context.Background()

	seed := []*domain.Play{
		testPlay(1, 10, 100, 50, domain.CategoryRanked, nil),
		testPlay(1, 11, 100, 60, domain.CategoryLoved, nil),
		testPlay(1, 12, 100, 70, domain.CategoryUnranked, nil),
	}
	for _, p := range seed {
		if err := repo.Upsert(ctx, p); err != nil {
			t.Fatalf("seed upsert failed: %v", err)
		}
	}

	tests := []struct {
		name     string
		category domain.Category
		want     int
	}{
		{"all", domain.CategoryAll, 3},
		{"empty means all", "", 3},
		{"ranked only", domain.CategoryRanked, 1},
		{"unranked excludes ranked", domain.CategoryUnranked, 2},
		{"loved only", domain.CategoryLoved, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plays, err := repo.Find(ctx, PlayFilter{UserID: 1, Category: tt.category})
			if err != nil {
				t.Fatalf("find failed: %v", err)
			}
			if len(plays) != tt.want {
				t.Errorf("got %d plays, want %d", len(plays), tt.want)
			}
		})
	}
}

func TestRankedFloorNeedsHundredMaps(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlayRepository(db, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 99; i++ {
		play := testPlay(1, int64(1000+i), 100, float64(100+i), domain.CategoryRanked, nil)
		if err := repo.Upsert(ctx, play); err != nil {
			t.Fatalf("seed upsert failed: %v", err)
		}
	}

	floor, err := repo.RankedFloor(ctx, 1)
	if err != nil {
		t.Fatalf("ranked floor failed: %v", err)
	}
	if floor != 0 {
		t.Fatalf("floor with 99 maps = %f, want 0", floor)
	}

	if err := repo.Upsert(ctx, testPlay(1, 2000, 100, 250, domain.CategoryRanked, nil)); err != nil {
		t.Fatalf("seed upsert failed: %v", err)
	}
	floor, err = repo.RankedFloor(ctx, 1)
	if err != nil {
		t.Fatalf("ranked floor failed: %v", err)
	}
	// 100 distinct maps rated 100..198 plus 250; the 100th best is 100.
	if floor != 100 {
		t.Fatalf("floor with 100 maps = %f, want 100", floor)
	}
}

func TestRankedFloorCollapsesModVariants(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlayRepository(db, zerolog.Nop())
	ctx := context.Background()

	// Two plays on the same map must count as one distinct map.
	if err := repo.Upsert(ctx, testPlay(1, 10, 100, 200, domain.CategoryRanked, nil)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := repo.Upsert(ctx, testPlay(1, 10, 100, 180, domain.CategoryRanked, []string{"MR"})); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	for i := 0; i < 98; i++ {
		if err := repo.Upsert(ctx, testPlay(1, int64(1000+i), 100, 100, domain.CategoryRanked, nil)); err != nil {
			t.Fatalf("seed upsert failed: %v", err)
		}
	}

	floor, err := repo.RankedFloor(ctx, 1)
	if err != nil {
		t.Fatalf("ranked floor failed: %v", err)
	}
	if floor != 0 {
		t.Fatalf("floor = %f, want 0 with only 99 distinct maps", floor)
	}
}

func TestPositionCountsStrictlyGreater(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlayRepository(db, zerolog.Nop())
	registry := NewTrackedPlayerRepository(db, zerolog.Nop())
	ctx := context.Background()

	if _, err := registry.Track(ctx, &domain.TrackedPlayer{UserID: 1, Username: "p"}, "chan-1"); err != nil {
		t.Fatalf("track failed: %v", err)
	}

	ratings := []float64{300, 250, 250, 100}
	for i, pp := range ratings {
		play := testPlay(1, int64(10+i), 100, pp, domain.CategoryRanked, nil)
		if err := repo.Upsert(ctx, play); err != nil {
			t.Fatalf("seed upsert failed: %v", err)
		}
	}

	tests := []struct {
		pp   float64
		want int
	}{
		{260, 1},
		{250, 1}, // ties are not counted
		{301, 0},
		{50, 4},
	}
	for _, tt := range tests {
		got, err := repo.Position(ctx, 1, domain.CategoryRanked, tt.pp)
		if err != nil {
			t.Fatalf("position failed: %v", err)
		}
		if got != tt.want {
			t.Errorf("Position(%f) = %d, want %d", tt.pp, got, tt.want)
		}
	}
}

func TestPositionUntracked(t *testing.T) {
	db := newTestDB(t)
	repo := NewPlayRepository(db, zerolog.Nop())

	_, err := repo.Position(context.Background(), 424242, domain.CategoryRanked, 100)
	if !errors.Is(err, ErrPlayerNotTracked) {
		t.Fatalf("err = %v, want ErrPlayerNotTracked", err)
	}
}

func TestRecomputeUnrankedPP(t *testing.T) {
	db := newTestDB(t)
	plays := NewPlayRepository(db, zerolog.Nop())
	registry := NewTrackedPlayerRepository(db, zerolog.Nop())
	ctx := context.Background()

	if _, err := plays.RecomputeUnrankedPP(ctx, 1); !errors.Is(err, ErrPlayerNotTracked) {
		t.Fatalf("recompute for untracked player: err = %v, want ErrPlayerNotTracked", err)
	}

	if _, err := registry.Track(ctx, &domain.TrackedPlayer{UserID: 1, Username: "p"}, "chan-1"); err != nil {
		t.Fatalf("track failed: %v", err)
	}
	if err := plays.Upsert(ctx, testPlay(1, 10, 100, 100, domain.CategoryUnranked, nil)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := plays.Upsert(ctx, testPlay(1, 11, 100, 50, domain.CategoryUnranked, nil)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	previous, err := plays.RecomputeUnrankedPP(ctx, 1)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if previous != 0 {
		t.Errorf("first recompute returned previous %f, want 0", previous)
	}

	player, err := registry.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	want := 100 + 50*0.95
	if math.Abs(player.UnrankedPP-want) > 1e-9 {
		t.Errorf("aggregate = %f, want %f", player.UnrankedPP, want)
	}

	previous, err = plays.RecomputeUnrankedPP(ctx, 1)
	if err != nil {
		t.Fatalf("second recompute failed: %v", err)
	}
	if math.Abs(previous-want) > 1e-9 {
		t.Errorf("second recompute returned previous %f, want %f", previous, want)
	}
}

func TestRecomputeUnrankedPPCapsAtTopHundred(t *testing.T) {
	db := newTestDB(t)
	plays := NewPlayRepository(db, zerolog.Nop())
	registry := NewTrackedPlayerRepository(db, zerolog.Nop())
	ctx := context.Background()

	if _, err := registry.Track(ctx, &domain.TrackedPlayer{UserID: 1, Username: "p"}, "chan-1"); err != nil {
		t.Fatalf("track failed: %v", err)
	}
	for i := 0; i < 110; i++ {
		if err := plays.Upsert(ctx, testPlay(1, int64(1000+i), 100, 100, domain.CategoryUnranked, nil)); err != nil {
			t.Fatalf("seed upsert failed: %v", err)
		}
	}

	if _, err := plays.RecomputeUnrankedPP(ctx, 1); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	player, err := registry.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	want := 0.0
	for i := 0; i < 100; i++ {
		want += 100 * math.Pow(0.95, float64(i))
	}
	if math.Abs(player.UnrankedPP-want) > 1e-6 {
		t.Errorf("aggregate = %f, want %f (top 100 only)", player.UnrankedPP, want)
	}
}
