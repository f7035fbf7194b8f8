package ai

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/goSTYLO/My-Crew-Manager-sub001/pkg/errors"
)

func story(text string) StoryNode { return StoryNode{Text: text} }

func TestNormalizeDropsEmptyTitles(t *testing.T) {
	in := []EpicNode{
		{Title: "  ", SubEpics: []SubEpicNode{{Title: "A", Stories: []StoryNode{story("As a user, I want x so that y")}}}},
		{Title: "Kept", SubEpics: []SubEpicNode{
			{Title: "", Stories: []StoryNode{story("As a user, I want x so that y")}},
			{Title: "Sub", Stories: []StoryNode{story("As a user, I want x so that y")}},
		}},
	}
	out, err := Normalize(in, DefaultCaps())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Kept", out[0].Title)
	require.Len(t, out[0].SubEpics, 1)
	require.Equal(t, "Sub", out[0].SubEpics[0].Title)
}

func TestNormalizeDedupesCaseInsensitive(t *testing.T) {
	in := []EpicNode{
		{Title: "Payments", SubEpics: []SubEpicNode{{Title: "Cards", Stories: []StoryNode{
			story("As a user, I want to pay so that I am billed"),
			story("as a USER, I want to pay so that I am billed"),
		}}}},
		{Title: " payments ", SubEpics: []SubEpicNode{{Title: "Wallets", Stories: []StoryNode{
			story("As a user, I want wallets so that checkout is fast"),
		}}}},
	}
	out, err := Normalize(in, DefaultCaps())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Payments", out[0].Title)
	require.Len(t, out[0].SubEpics[0].Stories, 1)
}

func TestNormalizeTruncatesToCaps(t *testing.T) {
	var in []EpicNode
	for i := 0; i < 20; i++ {
		in = append(in, EpicNode{
			Title: fmt.Sprintf("Epic %d", i),
			SubEpics: []SubEpicNode{{Title: "Sub", Stories: []StoryNode{
				story(fmt.Sprintf("As a user, I want feature %d so that it works", i)),
			}}},
		})
	}
	out, err := Normalize(in, DefaultCaps())
	require.NoError(t, err)
	require.Len(t, out, 8)
	require.Equal(t, "Epic 0", out[0].Title)
	require.Equal(t, "Epic 7", out[7].Title)
}

func TestNormalizeDropCascades(t *testing.T) {
	in := []EpicNode{
		{Title: "Doomed", SubEpics: []SubEpicNode{{Title: "Only sub", Stories: []StoryNode{
			story("Build the backend"),
			story("Write the docs"),
		}}}},
		{Title: "Alive", SubEpics: []SubEpicNode{{Title: "Sub", Stories: []StoryNode{
			story("As a user, I want something so that it helps"),
		}}}},
	}
	out, err := Normalize(in, DefaultCaps())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Alive", out[0].Title)
}

func TestNormalizeDefaultTask(t *testing.T) {
	in := []EpicNode{{Title: "E", SubEpics: []SubEpicNode{{Title: "S", Stories: []StoryNode{
		story("As a barista, I want to scan loyalty cards so that checkout is quick"),
		story("As a barista, I want a daily summary"),
	}}}}}
	out, err := Normalize(in, DefaultCaps())
	require.NoError(t, err)

	stories := out[0].SubEpics[0].Stories
	require.Len(t, stories, 2)
	require.Len(t, stories[0].Tasks, 1)
	require.Equal(t, "to scan loyalty cards", stories[0].Tasks[0].Title)
	require.Equal(t, "todo", stories[0].Tasks[0].Status)
	// no "so that" clause: goal runs to the end of the story
	require.Equal(t, "a daily summary", stories[1].Tasks[0].Title)
}

func TestNormalizeEmptyTree(t *testing.T) {
	_, err := Normalize(nil, DefaultCaps())
	require.True(t, appErr.IsCode(err, appErr.CodeEmptyResult))

	_, err = Normalize([]EpicNode{{Title: "E"}}, DefaultCaps())
	require.True(t, appErr.IsCode(err, appErr.CodeEmptyResult))
}

func TestNormalizedStoriesKeepCanonicalPrefix(t *testing.T) {
	epics := ParseBacklog(wellFormedReply)
	out, err := Normalize(epics, DefaultCaps())
	require.NoError(t, err)
	for _, e := range out {
		for _, se := range e.SubEpics {
			for _, st := range se.Stories {
				require.True(t, IsCanonicalStory(st.Text), "story %q", st.Text)
			}
		}
	}
}

func TestGoalClause(t *testing.T) {
	cases := []struct{ in, want string }{
		{"As a user, I want to log in so that my data is safe", "to log in"},
		{"As a user, I want reports", "reports"},
		{"As a user, something else entirely", "As a user, something else entirely"},
		{"As a user, I WANT fast search So That I save time", "fast search"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, GoalClause(c.in), "input %q", c.in)
	}
}
