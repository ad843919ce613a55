// Package llm turns fetched domain content into competitive insights.
// Producers are tried in order: OpenAI first, Anthropic second, and a
// heuristic writer last so the pipeline always yields something to score.
package llm

import "fmt"

const analystSystemPrompt = "You are a competitive intelligence analyst. " +
	"Generate a concise, actionable insight about this domain's trust signals and competitive position."

func analystUserPrompt(domain, content string) string {
	return fmt.Sprintf("Domain: %s\nContent: %s\n\nGenerate a competitive insight about their market position and trust signals.", domain, content)
}
