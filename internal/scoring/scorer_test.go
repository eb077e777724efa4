package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("placeholder ", n))
}

func TestScore_Deterministic(t *testing.T) {
	text := "A detailed technical brief with examples, a clear goal, and a strict format."
	first := Score(text, TypeText)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(text, TypeText))
	}
}

func TestScore_EmptyText(t *testing.T) {
	r := Score("", TypeText)
	assert.Equal(t, 0, r.WordCount)
	assert.Equal(t, 0.0, r.Score)
	for name, hit := range r.Indicators {
		assert.False(t, hit, "indicator %s should be false for empty text", name)
	}
}

func TestScore_AppropriateLengthBoundaries(t *testing.T) {
	cases := []struct {
		words int
		want  bool
	}{
		{49, false},
		{50, true},
		{500, true},
		{501, false},
	}
	for _, tc := range cases {
		r := Score(words(tc.words), TypeText)
		require.Equal(t, tc.words, r.WordCount)
		assert.Equal(t, tc.want, r.Indicators["appropriate_length"], "%d words", tc.words)
	}
}

func TestScore_HasObjectiveRequiresLength(t *testing.T) {
	// Keyword present but under the 20-word floor.
	short := "The goal is clarity."
	assert.False(t, Score(short, TypeText).Indicators["has_objective"])

	long := "The goal of this brief is clarity above all else " + words(15)
	r := Score(long, TypeText)
	require.Greater(t, r.WordCount, 20)
	assert.True(t, r.Indicators["has_objective"])
}

func TestScore_TypeSpecificIndicators(t *testing.T) {
	text := "Soft lighting and a wide angle with deliberate pacing and a timed sequence of function tests."

	img := Score(text, TypeImage)
	assert.Contains(t, img.Indicators, "visual_elements")
	assert.True(t, img.Indicators["visual_elements"])
	assert.NotContains(t, img.Indicators, "temporal_elements")
	assert.NotContains(t, img.Indicators, "technical_specs")

	vid := Score(text, TypeVideo)
	assert.True(t, vid.Indicators["temporal_elements"])
	assert.NotContains(t, vid.Indicators, "visual_elements")

	code := Score(text, TypeCode)
	assert.True(t, code.Indicators["technical_specs"])

	// text has no type-specific indicator: seven entries exactly
	plain := Score(text, TypeText)
	assert.Len(t, plain.Indicators, 7)
}

func TestScore_ScoreScaling(t *testing.T) {
	// No indicator hits on a tiny keyword-free text.
	assert.Equal(t, 0.0, Score("nothing here", TypeText).Score)

	// One of seven indicators true for a plain text prompt.
	r := Score("be precise", TypeText)
	require.True(t, r.Indicators["specificity"])
	assert.Equal(t, 14.3, r.Score)
}

func TestScore_RecommendationsFollowRuleTable(t *testing.T) {
	text := "A professional, detailed, and specific plan with examples and constraints for a technical objective."
	r := Score(text, TypeText)

	assert.True(t, r.Indicators["specificity"])
	assert.True(t, r.Indicators["constraints"])
	assert.True(t, r.Indicators["examples"])

	assert.NotContains(t, r.Recommendations, advisories["specificity"])
	assert.NotContains(t, r.Recommendations, advisories["constraints"])
	assert.NotContains(t, r.Recommendations, advisories["examples"])

	// structure is missing, so its advisory leads the list.
	require.NotEmpty(t, r.Recommendations)
	assert.Equal(t, advisories["structure"], r.Recommendations[0])
}

func TestScore_RecommendationsOrderIsStable(t *testing.T) {
	r := Score("nothing relevant", TypeImage)
	assert.Equal(t, []string{
		advisories["specificity"],
		advisories["structure"],
		advisories["constraints"],
		advisories["visual_elements"],
	}, r.Recommendations)
}

func TestScore_ExamplesAdvisoryOnlyForSupportedTypes(t *testing.T) {
	r := Score("nothing relevant", TypeVideo)
	assert.NotContains(t, r.Recommendations, advisories["examples"])

	r = Score("nothing relevant", TypeData)
	assert.Contains(t, r.Recommendations, advisories["examples"])
}

func TestParseType(t *testing.T) {
	assert.Equal(t, TypeImage, ParseType("IMAGE"))
	assert.Equal(t, TypeCode, ParseType(" code "))
	assert.Equal(t, TypeText, ParseType(""))
	assert.Equal(t, TypeText, ParseType("hologram"))
}
