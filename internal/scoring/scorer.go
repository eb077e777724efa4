// Package scoring grades enhanced prompts with a fixed battery of keyword
// indicators. Scoring is pure and deterministic: identical input always
// produces an identical report.
package scoring

import (
	"math"
	"strings"
)

// Type is the prompt category being generated.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
	TypeVideo Type = "video"
	TypeCode  Type = "code"
	TypeAudio Type = "audio"
	TypeData  Type = "data"
)

// SupportedTypes lists every valid prompt type, in display order.
var SupportedTypes = []Type{TypeText, TypeImage, TypeVideo, TypeCode, TypeAudio, TypeData}

// ParseType normalizes a raw type string, defaulting to text.
func ParseType(s string) Type {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range SupportedTypes {
		if t == known {
			return t
		}
	}
	return TypeText
}

// Report is the quality verdict for one generated prompt. It is computed
// once and embedded into the persisted generation event, never mutated.
type Report struct {
	Score           float64         `json:"quality_score"`
	Indicators      map[string]bool `json:"indicators"`
	WordCount       int             `json:"word_count"`
	Recommendations []string        `json:"recommendations"`
}

// indicator is one entry in the fixed battery. appliesTo empty means the
// indicator runs for every prompt type.
type indicator struct {
	name      string
	keywords  []string
	appliesTo Type
}

// The battery order doubles as the recommendation priority order, so the
// report is reproducible for identical inputs.
var indicators = []indicator{
	{name: "specificity", keywords: []string{"specific", "detailed", "exact", "precise", "concrete"}},
	{name: "structure", keywords: []string{"format", "structure", "section", "outline", "template"}},
	{name: "constraints", keywords: []string{"must", "should", "require", "constraint", "limit"}},
	{name: "examples", keywords: []string{"example", "for instance"}},
	{name: "tone_appropriate", keywords: []string{"professional", "formal", "academic", "technical"}},
	{name: "has_objective", keywords: []string{"objective", "goal", "purpose", "aim"}},
	{name: "appropriate_length"},
	{name: "visual_elements", keywords: []string{"lighting", "composition", "style", "angle", "resolution"}, appliesTo: TypeImage},
	{name: "temporal_elements", keywords: []string{"movement", "sequence", "timing", "duration", "pace"}, appliesTo: TypeVideo},
	{name: "technical_specs", keywords: []string{"function", "input", "output", "test", "error"}, appliesTo: TypeCode},
}

var advisories = map[string]string{
	"specificity":       "Add more specific details and concrete requirements",
	"structure":         "Consider adding a clear structure or format specification",
	"constraints":       "Define constraints or limitations to guide the AI",
	"examples":          "Include examples to clarify expected output",
	"visual_elements":   "Add more visual details like lighting, composition, or style",
	"temporal_elements": "Include temporal elements like pacing, sequencing, or duration",
}

const (
	minObjectiveWords = 20
	minLength         = 50
	maxLength         = 500
)

// Score evaluates text against the indicator battery for the given prompt
// type. Empty text yields a well-defined report: every indicator false,
// word count zero.
func Score(text string, promptType Type) Report {
	lower := strings.ToLower(text)
	wordCount := len(strings.Fields(text))

	flags := make(map[string]bool)
	trueCount, total := 0, 0
	for _, ind := range indicators {
		if ind.appliesTo != "" && ind.appliesTo != promptType {
			continue
		}
		total++

		var hit bool
		switch ind.name {
		case "appropriate_length":
			hit = wordCount >= minLength && wordCount <= maxLength
		case "has_objective":
			hit = wordCount > minObjectiveWords && containsAny(lower, ind.keywords)
		default:
			hit = containsAny(lower, ind.keywords)
		}

		flags[ind.name] = hit
		if hit {
			trueCount++
		}
	}

	score := math.Round(float64(trueCount)/float64(total)*1000) / 10

	return Report{
		Score:           score,
		Indicators:      flags,
		WordCount:       wordCount,
		Recommendations: recommendations(flags, promptType),
	}
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// recommendations builds the advisory list from the fixed rule table:
// each false indicator contributes exactly one string, in battery order.
// The examples advisory only applies to types where examples make sense;
// type-specific advisories only fire for their own type.
func recommendations(flags map[string]bool, promptType Type) []string {
	recs := []string{}

	if !flags["specificity"] {
		recs = append(recs, advisories["specificity"])
	}
	if !flags["structure"] {
		recs = append(recs, advisories["structure"])
	}
	if !flags["constraints"] {
		recs = append(recs, advisories["constraints"])
	}
	if !flags["examples"] && (promptType == TypeText || promptType == TypeCode || promptType == TypeData) {
		recs = append(recs, advisories["examples"])
	}
	if promptType == TypeImage && !flags["visual_elements"] {
		recs = append(recs, advisories["visual_elements"])
	}
	if promptType == TypeVideo && !flags["temporal_elements"] {
		recs = append(recs, advisories["temporal_elements"])
	}

	return recs
}
