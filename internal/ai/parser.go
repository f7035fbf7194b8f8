package ai

import (
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// ParseBacklog extracts the structured backlog block from a raw model reply
// and decodes it into a provisional tree. It is best-effort: any failure,
// including a panic in the decoder, yields an empty tree. It never returns
// an error; retry policy belongs to the orchestrator.
//
// Stories that do not start with "as a " (case-insensitive, after trimming)
// are dropped here. Empty titles are retained for the normalizer to handle.
func ParseBacklog(raw string) (epics []EpicNode) {
	defer func() {
		if recover() != nil {
			epics = nil
		}
	}()

	block := extractBlock(raw)
	if block == "" {
		return nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil
	}

	seq := mappingValue(doc.Content[0], "backlog")
	if seq == nil || seq.Kind != yaml.SequenceNode {
		// the top-level value under "backlog" must be a list
		return nil
	}

	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		e := EpicNode{Title: scalarValue(mappingValue(item, "epic"))}
		if subs := mappingValue(item, "sub_epics"); subs != nil && subs.Kind == yaml.SequenceNode {
			for _, sub := range subs.Content {
				if sub.Kind != yaml.MappingNode {
					continue
				}
				se := SubEpicNode{Title: scalarValue(mappingValue(sub, "title"))}
				if stories := mappingValue(sub, "user_stories"); stories != nil && stories.Kind == yaml.SequenceNode {
					for _, s := range stories.Content {
						text := strings.TrimSpace(scalarValue(s))
						if !strings.HasPrefix(strings.ToLower(text), "as a ") {
							continue
						}
						se.Stories = append(se.Stories, StoryNode{Text: text})
					}
				}
				e.SubEpics = append(e.SubEpics, se)
			}
		}
		epics = append(epics, e)
	}
	return epics
}

// extractBlock strips surrounding commentary: it keeps everything from the
// first line whose leading non-space token is "backlog:" up to the first
// later line that falls back to the block's starting column. Markdown fences
// and punctuation-only lines are discarded. The block is re-based to column
// zero so the decoder sees a clean document regardless of where the model
// placed it.
func extractBlock(raw string) string {
	lines := strings.Split(raw, "\n")

	start, base := -1, 0
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "backlog:") {
			start = i
			base = len(line) - len(trimmed)
			break
		}
	}
	if start < 0 {
		return ""
	}

	var kept []string
	kept = append(kept, dedent(lines[start], base))
	for _, line := range lines[start+1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isNoise(trimmed) {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent <= base {
			break
		}
		kept = append(kept, dedent(line, base))
	}
	return strings.Join(kept, "\n") + "\n"
}

func dedent(line string, n int) string {
	for i := 0; i < n && len(line) > 0; i++ {
		if line[0] != ' ' && line[0] != '\t' {
			break
		}
		line = line[1:]
	}
	return line
}

// isNoise reports whether a trimmed line is a markdown fence or contains
// only punctuation.
func isNoise(trimmed string) bool {
	if strings.HasPrefix(trimmed, "```") {
		return true
	}
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalarValue(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}
