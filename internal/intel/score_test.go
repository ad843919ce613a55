package intel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQualityScoreTiers(t *testing.T) {
	t.Parallel()

	longContent := strings.Repeat("x", 600)
	midContent := strings.Repeat("x", 300)

	tests := []struct {
		name    string
		insight string
		content string
		want    float64
	}{
		{
			name:    "short insight short content",
			insight: "too thin",
			content: "little",
			want:    0.2,
		},
		{
			name:    "medium insight medium content",
			insight: strings.Repeat("z", 60),
			content: midContent,
			want:    0.4,
		},
		{
			name:    "long insight rich content no keywords",
			insight: strings.Repeat("z", 150),
			content: longContent,
			want:    0.6,
		},
		{
			name:    "keywords add specificity bonus",
			insight: strings.Repeat("z", 150) + " market position and trust",
			content: longContent,
			want:    0.84,
		},
		{
			name:    "all keywords cap at one",
			insight: strings.Repeat("z", 150) + " trust competitive market signals position",
			content: longContent,
			want:    1.0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.InDelta(t, tt.want, QualityScore(tt.insight, tt.content), 1e-9)
		})
	}
}

func TestQualityScoreStaysWithinUnitInterval(t *testing.T) {
	t.Parallel()

	insights := []string{
		"",
		"trust",
		"trust competitive market signals position trust competitive market signals position",
		strings.Repeat("trust competitive market signals position ", 50),
	}
	contents := []string{"", "short", strings.Repeat("c", 250), strings.Repeat("c", 5000)}

	for _, insight := range insights {
		for _, content := range contents {
			score := QualityScore(insight, content)
			require.GreaterOrEqual(t, score, 0.0)
			require.LessOrEqual(t, score, 1.0)
		}
	}
}

func TestQualityScoreKeywordMatchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	base := QualityScore(strings.Repeat("z", 150), strings.Repeat("x", 600))
	upper := QualityScore(strings.Repeat("z", 150)+" TRUST", strings.Repeat("x", 600))
	require.InDelta(t, base+0.08, upper, 1e-9)
}

func TestCompetitiveScore(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 45.0, CompetitiveScore(50), 1e-9)
	require.InDelta(t, 0.0, CompetitiveScore(0), 1e-9)
	require.InDelta(t, 100.0, CompetitiveScore(150), 1e-9)
}

func TestMarketPosition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  string
	}{
		{95, "leader"},
		{90.1, "leader"},
		{90, "strong"},
		{71, "strong"},
		{70, "emerging"},
		{12.5, "emerging"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, MarketPosition(tt.score), "score %v", tt.score)
	}
}

func TestThreatLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "high", ThreatLevel(92))
	require.Equal(t, "medium", ThreatLevel(80))
	require.Equal(t, "medium", ThreatLevel(15))
}
