package search

import (
	"sort"
)

// DefaultRRFConstant is the smoothing constant from the original RRF paper.
// It keeps rank-1 items from dominating the fused score disproportionately.
const DefaultRRFConstant = 60

// Fuse combines ranked lists with Reciprocal Rank Fusion. The first list is
// tagged vector, later lists graph. Each record's fused score is the sum of
// 1/(k+rank) over every list containing its ID, with rank 1-indexed within
// that list.
//
// A record appearing in several lists is merged into one: the first
// occurrence wins, and later occurrences only fill fields the merged record
// does not already have. The output is sorted by fused score descending with
// encounter-order tie-breaking, so Fuse is a pure function of its inputs.
//
// When only one list is non-empty it passes through unchanged apart from
// source tagging; no fused score is assigned.
func Fuse(lists [][]Record, k int) []Record {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	switch countNonEmpty(lists) {
	case 0:
		return []Record{}
	case 1:
		return tagSingle(lists)
	}

	type fused struct {
		record  Record
		score   float64
		sources map[string]bool
		order   int
	}

	byID := make(map[string]*fused)
	var encounter []*fused

	for listIdx, list := range lists {
		source := SourceVector
		if listIdx > 0 {
			source = SourceGraph
		}
		for rank, rec := range list {
			if rec.ID == "" {
				continue
			}
			entry, ok := byID[rec.ID]
			if !ok {
				entry = &fused{
					record:  rec,
					sources: make(map[string]bool, 2),
					order:   len(encounter),
				}
				byID[rec.ID] = entry
				encounter = append(encounter, entry)
			} else {
				mergeMissing(&entry.record, rec)
			}
			entry.score += 1.0 / float64(k+rank+1)
			entry.sources[source] = true
		}
	}

	out := make([]Record, len(encounter))
	for i, entry := range encounter {
		rec := entry.record
		rec.FusedScore = entry.score
		if len(entry.sources) > 1 {
			rec.Source = SourceBoth
		} else if entry.sources[SourceGraph] {
			rec.Source = SourceGraph
		} else {
			rec.Source = SourceVector
		}
		out[i] = rec
	}

	// Stable keeps encounter order for equal float sums.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FusedScore > out[j].FusedScore
	})
	return out
}

func countNonEmpty(lists [][]Record) int {
	n := 0
	for _, list := range lists {
		if len(list) > 0 {
			n++
		}
	}
	return n
}

func tagSingle(lists [][]Record) []Record {
	for listIdx, list := range lists {
		if len(list) == 0 {
			continue
		}
		source := SourceVector
		if listIdx > 0 {
			source = SourceGraph
		}
		out := make([]Record, len(list))
		for i, rec := range list {
			rec.Source = source
			out[i] = rec
		}
		return out
	}
	return []Record{}
}

// mergeMissing fills dst's absent fields from src without overwriting
// anything dst already carries.
func mergeMissing(dst *Record, src Record) {
	if dst.Text == "" {
		dst.Text = src.Text
	}
	if dst.Strength == "" {
		dst.Strength = src.Strength
	}
	if dst.Direction == "" {
		dst.Direction = src.Direction
	}
	if dst.Topic == "" {
		dst.Topic = src.Topic
	}
	if dst.Subtopic == "" {
		dst.Subtopic = src.Subtopic
	}
	if dst.SimilarityScore == 0 {
		dst.SimilarityScore = src.SimilarityScore
	}
	if dst.EvidenceQuality == "" {
		dst.EvidenceQuality = src.EvidenceQuality
	}
	if dst.StudyCount == 0 {
		dst.StudyCount = src.StudyCount
	}
}
