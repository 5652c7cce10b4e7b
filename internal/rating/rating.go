// Package rating computes the custom osu!mania performance-points
// metric for plays the official API does not rank. All functions are
// pure and deterministic.
package rating

import (
	"math"

	"mania-tracker/internal/domain"
)

const (
	baseMultiplier = 8.0

	// Effective accuracy weights one judgement relative to a MAX hit.
	maxJudgement = 320.0
)

// MapObjects is the object composition of a beatmap.
type MapObjects struct {
	Circles  int
	Sliders  int
	Spinners int
}

func (m MapObjects) Total() int {
	return m.Circles + m.Sliders + m.Spinners
}

// Input carries everything Calculate can use. StarRating and Accuracy
// are required; Ratio and Hits select the effective-accuracy strategy.
type Input struct {
	StarRating float64
	Accuracy   float64 // 0..1
	Mods       domain.ModSet
	Objects    MapObjects
	// Ratio is an explicit hit-distribution override: five or more
	// entries are treated as MAX/300/200/100/50 counts, exactly two as
	// a MAX:300 ratio.
	Ratio []int
	// Hits, when set, supplies the raw judgement counts of the play.
	Hits *domain.HitStats
}

// Calculate returns the performance-points value for a play, rounded
// to two decimals. Zero star rating or accuracy yields 0: the play is
// unratable, not an error.
func Calculate(in Input) float64 {
	if in.StarRating <= 0 || in.Accuracy <= 0 {
		return 0
	}

	totalHits := in.Objects.Total()
	eff := effectiveAccuracy(in, totalHits)

	return round2(strain(in.StarRating, eff, totalHits) * modMultiplier(in.Mods))
}

// CalculateMax returns the rating ceiling of a map: the same transform
// with effective accuracy pinned to 100%.
func CalculateMax(starRating float64, totalHits int, mods domain.ModSet) float64 {
	if starRating <= 0 || totalHits <= 0 {
		return 0
	}
	return round2(strain(starRating, 1, totalHits) * modMultiplier(mods))
}

// RequiredAccuracy inverts Calculate: the accuracy needed to reach
// targetPP on a map. When ratio holds exactly two entries the explicit
// MAX:300 ratio strategy is inverted, otherwise the map-composition
// strategy, including its high-accuracy branch. The result is not
// clamped; values above 1 mean the target is unreachable.
func RequiredAccuracy(starRating, targetPP float64, mods domain.ModSet, objects MapObjects, ratio []int) float64 {
	totalHits := objects.Total()
	if starRating <= 0 || totalHits <= 0 || targetPP <= 0 {
		return 0
	}

	base := difficultyCurve(starRating) * lengthBonus(totalHits) * modMultiplier(mods)
	eff := (targetPP/base + 4) / 5

	if len(ratio) == 2 && ratio[0]+ratio[1] > 0 {
		r := float64(ratio[0]) / float64(ratio[0]+ratio[1])
		return eff / ((300 + 20*r) / maxJudgement)
	}

	x := compositionRatio(objects)

	// Low-accuracy branch: the composition term dominates the
	// adjustment, so eff is linear in accuracy.
	acc := eff * maxJudgement / (305.6 + 10*x)
	if 20*acc-19 <= x {
		return acc
	}

	// High-accuracy branch: the adjustment term 20a-19 wins the max,
	// giving eff = (200a + 115.6) * a / 320.
	return (-115.6 + math.Sqrt(115.6*115.6+4*200*maxJudgement*eff)) / 400
}

func effectiveAccuracy(in Input, totalHits int) float64 {
	switch {
	case len(in.Ratio) >= 5:
		return weightedSum(in.Ratio[0], in.Ratio[1], in.Ratio[2], in.Ratio[3], in.Ratio[4], totalHits)
	case len(in.Ratio) == 2 && in.Ratio[0]+in.Ratio[1] > 0:
		r := float64(in.Ratio[0]) / float64(in.Ratio[0]+in.Ratio[1])
		return (300 + 20*r) / maxJudgement * in.Accuracy
	case in.Hits == nil:
		adj := 20*in.Accuracy - 19
		if adj < 0 {
			adj = 0
		}
		x := compositionRatio(in.Objects)
		customRatio := 0.5*math.Max(adj, x) + 0.28
		return (300 + 20*customRatio) / maxJudgement * in.Accuracy
	default:
		h := in.Hits
		return weightedSum(h.Geki, h.Count300, h.Katu, h.Count100, h.Count50, totalHits)
	}
}

// weightedSum is the canonical MAX/300/200/100/50 judgement weighting
// over the map's object count.
func weightedSum(geki, c300, katu, c100, c50, totalHits int) float64 {
	if totalHits <= 0 {
		return 0
	}
	sum := float64(geki)*320 + float64(c300)*300 + float64(katu)*200 + float64(c100)*100 + float64(c50)*50
	return sum / (float64(totalHits) * maxJudgement)
}

// compositionRatio maps circle/slider balance into [0,1]. A sliderless
// map counts as pure bursts.
func compositionRatio(objects MapObjects) float64 {
	if objects.Sliders == 0 {
		return 1
	}
	x := float64(objects.Circles) / float64(objects.Sliders)
	return x / (x + 1)
}

func strain(starRating, eff float64, totalHits int) float64 {
	gate := 5*eff - 4
	if gate < 0 {
		gate = 0
	}
	return difficultyCurve(starRating) * gate * lengthBonus(totalHits)
}

func difficultyCurve(starRating float64) float64 {
	return math.Pow(math.Max(starRating-0.15, 0.05), 2.2)
}

func lengthBonus(totalHits int) float64 {
	return 1 + 0.1*math.Min(1, float64(totalHits)/1500)
}

func modMultiplier(mods domain.ModSet) float64 {
	multiplier := baseMultiplier
	if mods.Contains("NF") {
		multiplier *= 0.75
	}
	if mods.Contains("SO") {
		multiplier *= 0.95
	}
	if mods.Contains("EZ") {
		multiplier *= 0.50
	}
	return multiplier
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
