package intel

import "strings"

// specificityWords are the signal terms that raise an insight's quality
// score when they appear in the generated text.
var specificityWords = []string{"trust", "competitive", "market", "signals", "position"}

// QualityScore rates a generated insight against its source content on
// a [0,1] scale. Longer insights and richer source content score
// higher, plus a fixed bonus per specificity word present. The floor is
// 0.2 and the result is capped at 1.0.
func QualityScore(insight, content string) float64 {
	score := 0.0

	switch {
	case len(insight) > 100:
		score += 0.3
	case len(insight) > 50:
		score += 0.2
	default:
		score += 0.1
	}

	switch {
	case len(content) > 500:
		score += 0.3
	case len(content) > 200:
		score += 0.2
	default:
		score += 0.1
	}

	lowered := strings.ToLower(insight)
	for _, word := range specificityWords {
		if strings.Contains(lowered, word) {
			score += 0.08
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// CompetitiveScore derives the presentation-level competitive score
// from a 0-100 domain score.
func CompetitiveScore(score float64) float64 {
	cs := score * 0.9
	if cs > 100 {
		return 100
	}
	return cs
}

// MarketPosition buckets a 0-100 domain score.
func MarketPosition(score float64) string {
	switch {
	case score > 90:
		return "leader"
	case score > 70:
		return "strong"
	default:
		return "emerging"
	}
}

// ThreatLevel buckets a 0-100 domain score.
func ThreatLevel(score float64) string {
	if score > 80 {
		return "high"
	}
	return "medium"
}
