package ai

import (
	"strings"

	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
)

// Normalize enforces the backlog schema on a provisional tree. In order:
// drop epics and sub-epics with empty titles, drop stories that are not in
// the canonical shape, deduplicate by case-insensitive trimmed title keeping
// the first occurrence, truncate to the caps, and expand every story into at
// least one default task. Sub-epics left without stories are dropped, as are
// epics left without sub-epics.
//
// Returns an empty-result error when nothing survives.
func Normalize(epics []EpicNode, caps Caps) ([]EpicNode, error) {
	out := make([]EpicNode, 0, len(epics))
	seenEpics := map[string]bool{}

	for _, e := range epics {
		e.Title = strings.TrimSpace(e.Title)
		if e.Title == "" {
			continue
		}
		key := strings.ToLower(e.Title)
		if seenEpics[key] {
			continue
		}

		subs := make([]SubEpicNode, 0, len(e.SubEpics))
		seenSubs := map[string]bool{}
		for _, se := range e.SubEpics {
			se.Title = strings.TrimSpace(se.Title)
			if se.Title == "" {
				continue
			}
			subKey := strings.ToLower(se.Title)
			if seenSubs[subKey] {
				continue
			}

			stories := make([]StoryNode, 0, len(se.Stories))
			seenStories := map[string]bool{}
			for _, st := range se.Stories {
				st.Text = strings.TrimSpace(st.Text)
				if !IsCanonicalStory(st.Text) {
					continue
				}
				storyKey := strings.ToLower(st.Text)
				if seenStories[storyKey] {
					continue
				}
				seenStories[storyKey] = true
				if len(st.Tasks) == 0 {
					st.Tasks = []TaskDraft{{Title: GoalClause(st.Text), Status: "todo"}}
				}
				stories = append(stories, st)
				if len(stories) == caps.MaxStories {
					break
				}
			}
			if len(stories) == 0 {
				continue
			}
			seenSubs[subKey] = true
			se.Stories = stories
			subs = append(subs, se)
			if len(subs) == caps.MaxSubEpics {
				break
			}
		}
		if len(subs) == 0 {
			continue
		}
		seenEpics[key] = true
		e.SubEpics = subs
		out = append(out, e)
		if len(out) == caps.MaxEpics {
			break
		}
	}

	if len(out) == 0 {
		return nil, appErr.New(appErr.CodeEmptyResult, "backlog empty after normalization")
	}
	return out, nil
}

// IsCanonicalStory checks the canonical user-story predicate: the text must
// start with "as a ", case-insensitive. A missing "so that" clause is
// accepted.
func IsCanonicalStory(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "as a ")
}

// GoalClause extracts the "<goal>" part of a canonical story, the text
// between "I want" and "so that". Falls back to the whole story when the
// clause is absent.
func GoalClause(text string) string {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	start := strings.Index(lower, "i want ")
	if start < 0 {
		return text
	}
	goal := text[start+len("i want "):]
	if end := strings.Index(strings.ToLower(goal), " so that "); end >= 0 {
		goal = goal[:end]
	}
	return strings.TrimRight(strings.TrimSpace(goal), ",.")
}
