package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const wellFormedReply = `backlog:
  - epic: Loyalty program
    sub_epics:
      - title: Points
        user_stories:
          - As a customer, I want to earn points so that I get rewards
          - As a customer, I want to see my balance so that I can plan redemptions
  - epic: Ordering
    sub_epics:
      - title: Checkout
        user_stories:
          - As a customer, I want to pay in-app so that I skip the line
`

func TestParseBacklogWellFormed(t *testing.T) {
	epics := ParseBacklog(wellFormedReply)
	require.Len(t, epics, 2)
	require.Equal(t, "Loyalty program", epics[0].Title)
	require.Len(t, epics[0].SubEpics, 1)
	require.Equal(t, "Points", epics[0].SubEpics[0].Title)
	require.Len(t, epics[0].SubEpics[0].Stories, 2)
	require.Equal(t, "As a customer, I want to pay in-app so that I skip the line", epics[1].SubEpics[0].Stories[0].Text)
}

func TestParseBacklogStripsCommentaryAndFences(t *testing.T) {
	raw := "Sure! Here is the backlog you asked for:\n\n```yaml\n" + wellFormedReply + "```\n\nLet me know if you want changes."
	epics := ParseBacklog(raw)
	require.Len(t, epics, 2)
}

func TestParseBacklogIndentedBlock(t *testing.T) {
	raw := "  backlog:\n    - epic: Reports\n      sub_epics:\n        - title: Export\n          user_stories:\n            - As a manager, I want CSV export so that I can analyze offline\n"
	epics := ParseBacklog(raw)
	require.Len(t, epics, 1)
	require.Equal(t, "Reports", epics[0].Title)
	require.Len(t, epics[0].SubEpics[0].Stories, 1)
}

func TestParseBacklogFourSpaceIndent(t *testing.T) {
	raw := "backlog:\n    - epic: Billing\n      sub_epics:\n          - title: Invoices\n            user_stories:\n                - As an admin, I want monthly invoices so that accounting is simple\n"
	epics := ParseBacklog(raw)
	require.Len(t, epics, 1)
	require.Equal(t, "Billing", epics[0].Title)
}

func TestParseBacklogDropsNonCanonicalStories(t *testing.T) {
	raw := `backlog:
  - epic: Search
    sub_epics:
      - title: Filters
        user_stories:
          - As a user, I want to filter by tag so that I find things faster
          - Implement the tag filter backend
`
	epics := ParseBacklog(raw)
	require.Len(t, epics, 1)
	require.Len(t, epics[0].SubEpics[0].Stories, 1)
}

func TestParseBacklogKeepsEmptyTitles(t *testing.T) {
	raw := `backlog:
  - epic: ""
    sub_epics:
      - title: Something
        user_stories:
          - As a user, I want a thing so that it helps
`
	epics := ParseBacklog(raw)
	require.Len(t, epics, 1)
	require.Empty(t, epics[0].Title)
}

func TestParseBacklogProseOnly(t *testing.T) {
	require.Empty(t, ParseBacklog("I could not produce a backlog for this request."))
}

func TestParseBacklogTopLevelNotAList(t *testing.T) {
	require.Empty(t, ParseBacklog("backlog: nothing here\n"))
	require.Empty(t, ParseBacklog("backlog:\n  epic: wrong shape\n"))
}

func TestParseBacklogMissingSubEpics(t *testing.T) {
	raw := "backlog:\n  - epic: Bare epic\n"
	epics := ParseBacklog(raw)
	require.Len(t, epics, 1)
	require.Empty(t, epics[0].SubEpics)
}

func TestParseBacklogTrailingTopLevelKeyEndsBlock(t *testing.T) {
	raw := wellFormedReply + "notes: ignore all of the above\n  - stray\n"
	epics := ParseBacklog(raw)
	require.Len(t, epics, 2)
}

func TestEncodeParseRoundTrip(t *testing.T) {
	normalized, err := Normalize(ParseBacklog(wellFormedReply), DefaultCaps())
	require.NoError(t, err)

	again := ParseBacklog(EncodeBacklog(normalized))
	reNormalized, err := Normalize(again, DefaultCaps())
	require.NoError(t, err)

	require.Len(t, reNormalized, len(normalized))
	for i := range normalized {
		require.Equal(t, normalized[i].Title, reNormalized[i].Title)
		require.Len(t, reNormalized[i].SubEpics, len(normalized[i].SubEpics))
		for j := range normalized[i].SubEpics {
			require.Equal(t, normalized[i].SubEpics[j].Title, reNormalized[i].SubEpics[j].Title)
			for k := range normalized[i].SubEpics[j].Stories {
				require.Equal(t, normalized[i].SubEpics[j].Stories[k].Text, reNormalized[i].SubEpics[j].Stories[k].Text)
			}
		}
	}
}
