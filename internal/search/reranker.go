package search

import (
	"math"
	"sort"
	"strings"
)

// Boost multipliers keyed by exact categorical value. Unknown or absent
// values multiply by 1.0.
var strengthBoost = map[string]float64{
	"Strong":                  1.20,
	"Weak":                    1.00,
	"Neither for nor against": 0.90,
}

var qualityBoost = map[string]float64{
	"High":     1.15,
	"Moderate": 1.05,
	"Low":      0.95,
	"Very Low": 0.85,
}

// Recommendations for an action are more directly usable than neutral ones.
var directionBoost = map[string]float64{
	"For":     1.05,
	"Against": 1.00,
	"Neither": 0.95,
}

// neutralBaseScore stands in when a record carries neither a similarity
// score nor a fused score.
const neutralBaseScore = 0.5

// TopicBoostFactor is the multiplier for topic-relevant records.
const TopicBoostFactor = 1.10

// Rerank scores each record as base x strength x quality x direction, where
// base is the similarity score, then the fused score, then a neutral 0.5.
// Scores are capped at 1.0, rounded to 4 decimals, and the list is re-sorted
// descending. The input slice is not modified.
func Rerank(records []Record) []Record {
	if len(records) == 0 {
		return []Record{}
	}

	out := make([]Record, len(records))
	for i, rec := range records {
		base := rec.SimilarityScore
		if base == 0 {
			base = rec.FusedScore
		}
		if base == 0 {
			base = neutralBaseScore
		}

		score := base *
			boost(strengthBoost, rec.Strength) *
			boost(qualityBoost, rec.EvidenceQuality) *
			boost(directionBoost, rec.Direction)

		rec.Score = capAndRound(score)
		out[i] = rec
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// TopicBoost multiplies the score of records whose topic or subtopic
// substring-matches any target topic, case-insensitive in either direction,
// then re-sorts. With no targets the input is returned unchanged.
func TopicBoost(records []Record, targetTopics []string) []Record {
	if len(records) == 0 || len(targetTopics) == 0 {
		return records
	}

	// Empty targets are dropped: Contains(topic, "") matches everything.
	targets := make([]string, 0, len(targetTopics))
	for _, t := range targetTopics {
		if t != "" {
			targets = append(targets, strings.ToLower(t))
		}
	}
	if len(targets) == 0 {
		return records
	}

	out := make([]Record, len(records))
	for i, rec := range records {
		if matchesTopic(rec, targets) {
			rec.Score = capAndRound(rec.Score * TopicBoostFactor)
		}
		out[i] = rec
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func matchesTopic(rec Record, targets []string) bool {
	topic := strings.ToLower(rec.Topic)
	subtopic := strings.ToLower(rec.Subtopic)
	for _, t := range targets {
		// Guard empty fields: Contains(t, "") is vacuously true.
		if topic != "" && (strings.Contains(topic, t) || strings.Contains(t, topic)) {
			return true
		}
		if subtopic != "" && (strings.Contains(subtopic, t) || strings.Contains(t, subtopic)) {
			return true
		}
	}
	return false
}

func boost(table map[string]float64, value string) float64 {
	if m, ok := table[value]; ok {
		return m
	}
	return 1.0
}

func capAndRound(score float64) float64 {
	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return math.Round(score*10000) / 10000
}
