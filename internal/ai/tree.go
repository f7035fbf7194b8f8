package ai

// EpicNode is one top-level entry of a provisional or normalized backlog
// tree. Sibling order is meaningful: it becomes the persisted position.
type EpicNode struct {
	Title    string
	SubEpics []SubEpicNode
}

// SubEpicNode groups user stories under an epic.
type SubEpicNode struct {
	Title   string
	Stories []StoryNode
}

// StoryNode is a single user story and its tasks. Trees coming out of the
// parser carry no tasks; the normalizer expands each story into at least one.
type StoryNode struct {
	Text  string
	Tasks []TaskDraft
}

// TaskDraft is a task to be created under a story at commit time.
type TaskDraft struct {
	Title       string
	Description string
	Status      string
}

// Summary holds the node counts of a tree.
type Summary struct {
	Epics   int `json:"epics"`
	Stories int `json:"stories"`
	Tasks   int `json:"tasks"`
}

// Summarize counts the nodes of a tree.
func Summarize(epics []EpicNode) Summary {
	var s Summary
	s.Epics = len(epics)
	for _, e := range epics {
		for _, se := range e.SubEpics {
			s.Stories += len(se.Stories)
			for _, st := range se.Stories {
				s.Tasks += len(st.Tasks)
			}
		}
	}
	return s
}
