package ai

import (
	"strings"

	"gopkg.in/yaml.v3"
)

type canonicalDoc struct {
	Backlog []canonicalEpic `yaml:"backlog"`
}

type canonicalEpic struct {
	Epic     string             `yaml:"epic"`
	SubEpics []canonicalSubEpic `yaml:"sub_epics"`
}

type canonicalSubEpic struct {
	Title       string   `yaml:"title"`
	UserStories []string `yaml:"user_stories"`
}

// EncodeBacklog renders a tree in the canonical serialized form the prompt
// requests and the parser reads back. Tasks are not part of the wire form.
func EncodeBacklog(epics []EpicNode) string {
	doc := canonicalDoc{Backlog: make([]canonicalEpic, 0, len(epics))}
	for _, e := range epics {
		ce := canonicalEpic{Epic: e.Title, SubEpics: make([]canonicalSubEpic, 0, len(e.SubEpics))}
		for _, se := range e.SubEpics {
			cse := canonicalSubEpic{Title: se.Title, UserStories: make([]string, 0, len(se.Stories))}
			for _, st := range se.Stories {
				cse.UserStories = append(cse.UserStories, st.Text)
			}
			ce.SubEpics = append(ce.SubEpics, cse)
		}
		doc.Backlog = append(doc.Backlog, ce)
	}

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return ""
	}
	_ = enc.Close()
	return b.String()
}
