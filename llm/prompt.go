package llm

import (
	"strings"

	"github.com/atotto/clipboard"

	"github.com/DustinWehr/LinWhisper/log"
)

// PromptInput carries the values substituted into a mode's prompt
// template.
type PromptInput struct {
	Transcript string
	Language   string
	// ContextAwareness gates clipboard access. When false, {{context}}
	// renders as the empty string and the clipboard is never read.
	ContextAwareness bool
}

// RenderPrompt substitutes {{transcript}}, {{context}} and {{language}}
// in template. Placeholders it does not recognize pass through
// verbatim. The clipboard is only read when the template actually
// contains {{context}} and context awareness is enabled.
func RenderPrompt(template string, in PromptInput) string {
	contextText := ""
	if in.ContextAwareness && strings.Contains(template, "{{context}}") {
		text, err := clipboard.ReadAll()
		if err != nil {
			log.Warnf("clipboard read failed, rendering empty context: %v", err)
		} else {
			contextText = text
		}
	}
	r := strings.NewReplacer(
		"{{transcript}}", in.Transcript,
		"{{context}}", contextText,
		"{{language}}", in.Language,
	)
	return r.Replace(template)
}
