package analysis

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/verte-zerg/woodshed/internal/song"
)

const (
	maxChunkBars = 4

	// featureDistanceLimit is the Euclidean feature-vector distance below
	// which two adjacent bars are considered similar enough to share a chunk.
	featureDistanceLimit = 5.0
)

// Chunk is a contiguous 1-4 bar practice unit.
type Chunk struct {
	ID         string
	BarIndices []int
	FirstBar   int // 1-based
	LastBar    int // 1-based
	Difficulty int
	Label      string
	Techniques []string
}

// BuildChunks greedily groups consecutive bars into practice chunks.
// Chunks never cross a structural marker, never contain an empty bar,
// and never exceed four bars. Ids are positional and only stable within
// one segmentation run.
func BuildChunks(s *song.Song, features []BarFeature) []Chunk {
	if len(s.Bars) == 0 || len(features) == 0 {
		return nil
	}

	var runs [][]int
	current := []int{0}
	for i := 1; i < len(s.Bars); i++ {
		if extendsChunk(s, features, current, i) {
			current = append(current, i)
			continue
		}
		runs = append(runs, current)
		current = []int{i}
	}
	runs = append(runs, current)

	var chunks []Chunk
	for _, run := range runs {
		if allEmpty(features, run) {
			continue
		}
		chunks = append(chunks, buildChunk(s, features, run, len(chunks)))
	}
	return chunks
}

// extendsChunk decides whether bar i joins the open chunk, in the fixed
// priority order: marker break, empty-bar break, then similarity.
func extendsChunk(s *song.Song, features []BarFeature, current []int, i int) bool {
	if s.Bars[i].Marker != "" {
		return false
	}
	if features[i].IsEmpty || features[i-1].IsEmpty {
		return false
	}
	if len(current) >= maxChunkBars {
		return false
	}
	shapeA, shapeB := shapeSignature(s.Bars[i-1]), shapeSignature(s.Bars[i])
	if shapeA != "" && shapeA == shapeB {
		return true
	}
	rhythmA, rhythmB := rhythmSignature(s.Bars[i-1]), rhythmSignature(s.Bars[i])
	if rhythmA != "" && rhythmA == rhythmB {
		return true
	}
	return floats.Distance(features[i-1].Vector(), features[i].Vector(), 2) < featureDistanceLimit
}

func allEmpty(features []BarFeature, run []int) bool {
	for _, idx := range run {
		if !features[idx].IsEmpty {
			return false
		}
	}
	return true
}

func buildChunk(s *song.Song, features []BarFeature, run []int, ordinal int) Chunk {
	c := Chunk{
		ID:         fmt.Sprintf("chunk-%d", ordinal),
		BarIndices: run,
		FirstBar:   run[0] + 1,
		LastBar:    run[len(run)-1] + 1,
	}

	tags := map[string]struct{}{}
	for _, idx := range run {
		if features[idx].Difficulty > c.Difficulty {
			c.Difficulty = features[idx].Difficulty
		}
		for t := range features[idx].Techniques {
			tags[t] = struct{}{}
		}
	}
	c.Techniques = sortedTags(tags)

	if marker := s.MarkerAt(run[0]); marker != "" {
		c.Label = marker
	} else if c.FirstBar == c.LastBar {
		c.Label = fmt.Sprintf("Bar %d", c.FirstBar)
	} else {
		c.Label = fmt.Sprintf("Bars %d–%d", c.FirstBar, c.LastBar)
	}
	return c
}

func sortedTags(tags map[string]struct{}) []string {
	f := BarFeature{Techniques: tags}
	return f.TechniqueList()
}

// shapeSignature renders the bar's relative fret/string pattern: each
// note's fret expressed relative to the bar's first played fret, joined
// as "string:relFret" pairs. Identical signatures mean the bars are the
// same lick shifted up or down the neck.
func shapeSignature(bar song.Bar) string {
	notes := bar.PlayedNotes()
	base := -1
	for _, n := range notes {
		if !n.Muted && n.Fret >= 0 {
			base = n.Fret
			break
		}
	}
	if base < 0 {
		return ""
	}
	parts := make([]string, 0, len(notes))
	for _, n := range notes {
		if n.Muted || n.Fret < 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d:%d", n.String, n.Fret-base))
	}
	return strings.Join(parts, " ")
}

// rhythmSignature renders the bar's duration/tuplet/dot sequence.
func rhythmSignature(bar song.Bar) string {
	beats := bar.PlayedBeats()
	parts := make([]string, 0, len(beats))
	for _, b := range beats {
		p := fmt.Sprintf("%d", b.Duration)
		if b.Tuplet {
			p += "t"
		}
		if b.Dots > 0 {
			p += strings.Repeat(".", b.Dots)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// AnalyzeSong runs the full pipeline: features, difficulty, chunks.
func AnalyzeSong(s *song.Song) ([]BarFeature, []Chunk) {
	features := make([]BarFeature, len(s.Bars))
	for i, bar := range s.Bars {
		features[i] = ExtractBarFeatures(bar, i)
	}
	scored, _ := ScoreDifficulty(features)
	return scored, BuildChunks(s, scored)
}
