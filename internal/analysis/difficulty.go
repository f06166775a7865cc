package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// difficultyWeights blend the six normalized features into one score.
// They sum to 1.0, so a bar sitting exactly on the song's medians lands
// on 50.
var difficultyWeights = map[string]float64{
	FeatNoteDensity:     0.25,
	FeatStringCrossings: 0.20,
	FeatPositionShifts:  0.15,
	FeatTechniqueScore:  0.15,
	FeatRhythmScore:     0.15,
	FeatFretSpan:        0.10,
}

// Medians holds the per-feature normalization reference: the median of
// each feature over the song's non-empty bars.
type Medians map[string]float64

// ComputeMedians derives the per-feature medians across non-empty bars.
// A song with no non-empty bars yields all-zero medians.
func ComputeMedians(features []BarFeature) Medians {
	m := Medians{}
	for _, key := range featureKeys {
		m[key] = 0
	}
	values := map[string][]float64{}
	for _, f := range features {
		if f.IsEmpty {
			continue
		}
		vec := f.Vector()
		for i, key := range featureKeys {
			values[key] = append(values[key], vec[i])
		}
	}
	for key, vals := range values {
		sort.Float64s(vals)
		m[key] = stat.Quantile(0.5, stat.Empirical, vals, nil)
	}
	return m
}

// ScoreDifficulty attaches a 0-100 difficulty to every feature record,
// normalized against the song's own medians. Empty bars stay at 0.
// The input slice is not mutated; a scored copy is returned.
func ScoreDifficulty(features []BarFeature) ([]BarFeature, Medians) {
	medians := ComputeMedians(features)
	scored := make([]BarFeature, len(features))
	copy(scored, features)
	for i := range scored {
		if scored[i].IsEmpty {
			scored[i].Difficulty = 0
			continue
		}
		scored[i].Difficulty = scoreBar(scored[i], medians)
	}
	return scored, medians
}

func scoreBar(f BarFeature, medians Medians) int {
	vec := f.Vector()
	total := 0.0
	for i, key := range featureKeys {
		total += difficultyWeights[key] * sigmoid(vec[i], medians[key])
	}
	return int(math.Round(100 * total))
}

// sigmoid maps a feature value onto (0, 1) relative to the song median,
// with 0.5 exactly at the median.
func sigmoid(v, median float64) float64 {
	return 1 / (1 + math.Exp(-(v - median)))
}
