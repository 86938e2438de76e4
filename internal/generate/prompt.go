package generate

import (
	"fmt"
	"strings"

	"storyforge/internal/figma"
	"storyforge/internal/shell"
)

const systemPrompt = `You are a senior product engineer turning terse planning notes into well-formed user stories for an issue tracker.`

const draftInstructions = `Write the full story body for the shell story below. Structure it as markdown with exactly these sections:

## Summary
One short paragraph restating the story in user-value terms.

## Acceptance Criteria
A bullet list of concrete, testable criteria. Derive them from the description and the linked screens.

## Design References
A bullet list linking each screen by name.

## Out of Scope
Bullets for anything the description implies is deferred, or "- Nothing noted." if none.

Rules:
- Do not invent features the description and screens do not support
- Keep acceptance criteria independently verifiable
- Mention dependent stories only under Out of Scope, as context
- Respond with ONLY the markdown body, no preamble`

// PromptInput is everything the prompt builder needs for one story.
type PromptInput struct {
	EpicKey     string
	EpicSummary string
	// EpicContext is the rendered text of the epic description minus the
	// shell-story section, trimmed to budget.
	EpicContext string
	Record      shell.Record
	Screens     []figma.Screen
	// Dependencies maps dependency ids to their completion URLs (empty
	// string when the dependency is still pending).
	Dependencies map[string]string
}

// ContextTokenBudget caps how much rendered epic context goes into a prompt.
const ContextTokenBudget = 2000

// BuildPrompt assembles the draft prompt for one shell story.
func BuildPrompt(in PromptInput) string {
	var sb strings.Builder
	sb.WriteString(draftInstructions)
	sb.WriteString("\n\n---\n")
	fmt.Fprintf(&sb, "Epic: %s %q\n", in.EpicKey, in.EpicSummary)
	fmt.Fprintf(&sb, "Story id: %s\n", in.Record.ID)
	fmt.Fprintf(&sb, "Title: %s\n", in.Record.Title)
	fmt.Fprintf(&sb, "Description: %s\n", in.Record.Description)

	if len(in.Screens) > 0 {
		sb.WriteString("Screens:\n")
		for _, s := range in.Screens {
			fmt.Fprintf(&sb, "- %s (%s)", s.Name, s.Type)
			if s.ImageURL != "" {
				fmt.Fprintf(&sb, " %s", s.ImageURL)
			}
			sb.WriteString("\n")
		}
	}
	if len(in.Dependencies) > 0 {
		sb.WriteString("Depends on:\n")
		for _, dep := range in.Record.Dependencies {
			url, done := in.Dependencies[dep]
			switch {
			case done && url != "":
				fmt.Fprintf(&sb, "- %s (done: %s)\n", dep, url)
			default:
				fmt.Fprintf(&sb, "- %s (pending)\n", dep)
			}
		}
	}

	if ctx := TrimToTokens(in.EpicContext, ContextTokenBudget); ctx != "" {
		sb.WriteString("---\nEpic context:\n")
		sb.WriteString(ctx)
		sb.WriteString("\n")
	}
	return sb.String()
}
