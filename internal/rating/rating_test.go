package rating

import (
	"math"
	"testing"

	"mania-tracker/internal/domain"
)

const tolerance = 1e-3

// Star rating 1.15 pins the difficulty curve at 1 and 1500 objects pin
// the length bonus at 1.1, so expected values stay hand-checkable.
func flatMap() MapObjects {
	return MapObjects{Circles: 1000, Sliders: 500}
}

func TestCalculateUnratableInputs(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"zero star rating", Input{StarRating: 0, Accuracy: 0.9, Objects: flatMap()}},
		{"zero accuracy", Input{StarRating: 4, Accuracy: 0, Objects: flatMap()}},
		{"negative star rating", Input{StarRating: -1, Accuracy: 0.9, Objects: flatMap()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Calculate(tt.in); got != 0 {
				t.Errorf("Calculate() = %f, want 0", got)
			}
		})
	}
}

func TestCalculateRatioStrategy(t *testing.T) {
	tests := []struct {
		name string
		acc  float64
		mods []string
		want float64
	}{
		{"perfect", 1.0, nil, 8.8},
		{"ninety percent", 0.9, nil, 4.4},
		{"perfect with NF", 1.0, []string{"NF"}, 6.6},
		{"perfect with EZ", 1.0, []string{"EZ"}, 4.4},
		{"perfect with SO", 1.0, []string{"SO"}, 8.36},
		{"perfect with NF and EZ", 1.0, []string{"NF", "EZ"}, 3.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(Input{
				StarRating: 1.15,
				Accuracy:   tt.acc,
				Mods:       domain.NewModSet(tt.mods),
				Objects:    flatMap(),
				Ratio:      []int{1, 0},
			})
			if math.Abs(got-tt.want) > tolerance {
				t.Errorf("Calculate() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestCalculateAllMaxHitsEqualsCeiling(t *testing.T) {
	objects := MapObjects{Circles: 700, Sliders: 300}
	hits := domain.HitStats{Geki: 1000}
	got := Calculate(Input{StarRating: 4.3, Accuracy: 1, Objects: objects, Hits: &hits})
	want := CalculateMax(4.3, objects.Total(), nil)
	if math.Abs(got-want) > tolerance {
		t.Errorf("all-MAX play = %f, ceiling = %f", got, want)
	}
}

func TestCalculateMonotonicInAccuracy(t *testing.T) {
	prev := 0.0
	for acc := 0.80; acc <= 1.0; acc += 0.01 {
		got := Calculate(Input{StarRating: 4.5, Accuracy: acc, Objects: flatMap()})
		if got < prev {
			t.Fatalf("Calculate() decreased from %f to %f at accuracy %f", prev, got, acc)
		}
		prev = got
	}
}

func TestCalculateMaxUnratableInputs(t *testing.T) {
	if got := CalculateMax(0, 1000, nil); got != 0 {
		t.Errorf("CalculateMax(0 stars) = %f, want 0", got)
	}
	if got := CalculateMax(4, 0, nil); got != 0 {
		t.Errorf("CalculateMax(0 objects) = %f, want 0", got)
	}
}

func TestRequiredAccuracyRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		star    float64
		acc     float64
		objects MapObjects
		mods    []string
	}{
		{"low accuracy branch", 4.2, 0.85, MapObjects{Circles: 100, Sliders: 100}, nil},
		{"high accuracy branch", 4.2, 0.995, MapObjects{Circles: 100, Sliders: 100}, nil},
		{"sliderless map", 5.0, 0.93, MapObjects{Circles: 800}, nil},
		{"with NF", 4.2, 0.97, MapObjects{Circles: 600, Sliders: 200}, []string{"NF"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mods := domain.NewModSet(tt.mods)
			pp := Calculate(Input{StarRating: tt.star, Accuracy: tt.acc, Mods: mods, Objects: tt.objects})
			if pp <= 0 {
				t.Fatalf("Calculate() = %f, fixture produces no rating", pp)
			}
			got := RequiredAccuracy(tt.star, pp, mods, tt.objects, nil)
			if math.Abs(got-tt.acc) > tolerance {
				t.Errorf("RequiredAccuracy(%f) = %f, want %f", pp, got, tt.acc)
			}
		})
	}
}

func TestRequiredAccuracyRatioRoundTrip(t *testing.T) {
	ratio := []int{3, 1}
	objects := flatMap()
	pp := Calculate(Input{StarRating: 4.8, Accuracy: 0.91, Objects: objects, Ratio: ratio})
	got := RequiredAccuracy(4.8, pp, nil, objects, ratio)
	if math.Abs(got-0.91) > tolerance {
		t.Errorf("RequiredAccuracy() = %f, want 0.91", got)
	}
}

func TestRequiredAccuracyUnreachable(t *testing.T) {
	objects := MapObjects{Circles: 100, Sliders: 100}
	ceiling := CalculateMax(4.2, objects.Total(), nil)
	got := RequiredAccuracy(4.2, ceiling*2, nil, objects, nil)
	if got <= 1 {
		t.Errorf("RequiredAccuracy(above ceiling) = %f, want > 1", got)
	}
}

func TestRequiredAccuracyUnratableInputs(t *testing.T) {
	if got := RequiredAccuracy(0, 100, nil, flatMap(), nil); got != 0 {
		t.Errorf("RequiredAccuracy(0 stars) = %f, want 0", got)
	}
	if got := RequiredAccuracy(4, 0, nil, flatMap(), nil); got != 0 {
		t.Errorf("RequiredAccuracy(0 target) = %f, want 0", got)
	}
}
