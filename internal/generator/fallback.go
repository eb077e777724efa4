package generator

import (
	"fmt"
	"strings"

	"github.com/promptforge-ai/promptforge/internal/scoring"
)

// Structured skeletons served when the upstream model is unavailable, fixed
// per prompt type so fallback output is deterministic.
var fallbackTemplates = map[scoring.Type]string{
	scoring.TypeText: "OBJECTIVE: Clearly define the primary goal\nCONTEXT: Provide necessary background\n" +
		"FORMAT: Specify output structure\nKEY REQUIREMENTS: List essential elements\n" +
		"TONE: Define appropriate tone\nCONSTRAINTS: Set clear limitations\n" +
		"EXPECTED OUTPUT: Describe what success looks like",
	scoring.TypeImage: "SUBJECT: Main focus of the image\nACTION: What's happening\n" +
		"ENVIRONMENT: Where it takes place\nSTYLE: Artistic approach\nLIGHTING: Lighting conditions\n" +
		"COMPOSITION: Framing and angle\nMOOD: Emotional atmosphere\nTECHNICAL: Resolution and quality",
	scoring.TypeVideo: "SCENE: Main visual sequence\nMOVEMENT: Camera and subject motion\n" +
		"STYLE: Cinematic approach\nPACING: Timing and rhythm\nAUDIO: Sound elements\n" +
		"LENGTH: Duration\nASPECT RATIO: Frame dimensions",
	scoring.TypeCode: "FUNCTION: What the code should do\nINPUT: Required inputs\nOUTPUT: Expected outputs\n" +
		"CONSTRAINTS: Technical limitations\nERROR HANDLING: How to handle issues\n" +
		"TESTING: Verification requirements\nDOCUMENTATION: Code documentation needs",
}

// Fallback returns the deterministic enhancement skeleton for the given
// input and type. Types without their own template use the text skeleton.
func Fallback(input string, promptType scoring.Type) string {
	tmpl, ok := fallbackTemplates[promptType]
	if !ok {
		tmpl = fallbackTemplates[scoring.TypeText]
	}
	return fmt.Sprintf("Professional %s Prompt for: %s\n\n%s",
		strings.ToUpper(string(promptType)), input, tmpl)
}
