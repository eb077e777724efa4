package prompts

// promptTemplates is the built-in starter catalog, keyed by prompt type.
var promptTemplates = map[string][]Template{
	"text": {
		{
			Title: "Blog post outline",
			Body:  "Write a detailed outline for a blog post about [TOPIC]. Include an attention-grabbing introduction, 4-6 main sections with supporting points, and a conclusion with a call to action. Target audience: [AUDIENCE]. Tone: professional but approachable.",
		},
		{
			Title: "Executive summary",
			Body:  "Summarize the following document into a one-page executive summary for senior leadership. Highlight key findings, risks, and recommended next steps. Keep it under 400 words.",
		},
	},
	"image": {
		{
			Title: "Product photography",
			Body:  "A professional studio photograph of [PRODUCT], shot on a seamless white background with soft diffused lighting, shallow depth of field, high resolution, commercial photography style.",
		},
		{
			Title: "Concept art scene",
			Body:  "Digital concept art of [SCENE], dramatic lighting, wide-angle composition, rich color palette, detailed environment, trending illustration style.",
		},
	},
	"video": {
		{
			Title: "Product explainer",
			Body:  "A 60-second explainer video for [PRODUCT]. Open with the problem, show the product in action for 30 seconds, close with benefits and a call to action. Upbeat pacing, clean motion graphics, on-screen captions.",
		},
	},
	"code": {
		{
			Title: "Function implementation",
			Body:  "Implement a function that [BEHAVIOR]. Language: [LANGUAGE]. Include input validation, error handling, and unit tests covering the edge cases. Follow the standard style conventions of the language.",
		},
		{
			Title: "Code review",
			Body:  "Review the following code for correctness, performance, and readability. List concrete issues with line references and suggest fixes, ordered by severity.",
		},
	},
	"audio": {
		{
			Title: "Podcast intro",
			Body:  "Write a 30-second podcast intro script for a show about [TOPIC]. Warm, conversational tone, ending with the host introduction and episode teaser.",
		},
	},
	"data": {
		{
			Title: "Dataset analysis",
			Body:  "Analyze the attached dataset of [SUBJECT]. Describe the structure, identify trends and outliers, and present the three most important findings with supporting figures.",
		},
	},
}
