package ai

import (
	"fmt"
	"sort"
	"strings"
)

// Caps bounds the size of a generated backlog at each level.
type Caps struct {
	MaxEpics    int
	MaxSubEpics int
	MaxStories  int
}

// DefaultCaps returns the standard 8 epics x 6 sub-epics x 8 stories bound.
func DefaultCaps() Caps {
	return Caps{MaxEpics: 8, MaxSubEpics: 6, MaxStories: 8}
}

// PromptInput carries everything the prompt depends on. Identical inputs
// produce byte-identical prompts.
type PromptInput struct {
	ProjectTitle       string
	ProjectDescription string
	Constraints        map[string]string
}

// BuildPrompt assembles the instruction sent to the model. The prompt pins
// the top-level key, the user-story phrasing, the size caps, and forbids
// commentary outside the structured block.
func BuildPrompt(in PromptInput, caps Caps) string {
	var b strings.Builder

	b.WriteString("You are a senior product manager. Break the following project down into a structured product backlog.\n\n")
	b.WriteString("Project: ")
	b.WriteString(strings.TrimSpace(in.ProjectTitle))
	b.WriteString("\n\nDescription:\n")
	b.WriteString(strings.TrimSpace(in.ProjectDescription))
	b.WriteString("\n")

	if len(in.Constraints) > 0 {
		b.WriteString("\nConstraints:\n")
		keys := make([]string, 0, len(in.Constraints))
		for k := range in.Constraints {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, in.Constraints[k])
		}
	}

	fmt.Fprintf(&b, `
Respond with an indented block whose top-level key is "backlog". Each epic has an "epic" field with its title and a "sub_epics" list; each sub-epic has a "title" and a "user_stories" list of plain strings. Follow this shape exactly:

%s
Rules:
- Every user story must read "As a <role>, I want <goal> so that <benefit>".
- At most %d epics, %d sub-epics per epic, and %d user stories per sub-epic.
- Output only the backlog block. No commentary, no markdown fences, nothing before or after it.
`, exampleBlock, caps.MaxEpics, caps.MaxSubEpics, caps.MaxStories)

	return b.String()
}

// exampleBlock is the canonical serialization of a minimal tree, fixed at
// init so the parser and the prompt can never drift apart.
var exampleBlock = EncodeBacklog([]EpicNode{
	{
		Title: "Account management",
		SubEpics: []SubEpicNode{
			{
				Title: "Sign up",
				Stories: []StoryNode{
					{Text: "As a visitor, I want to create an account so that I can access the app"},
				},
			},
		},
	},
})
