package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinateKeepsSeparatorsInSlug(t *testing.T) {
	coordinate, err := ParseCoordinate("30023:pk1:notes:2026:q3")
	require.NoError(t, err)

	assert.Equal(t, Coordinate{Kind: 30023, Pubkey: "pk1", Slug: "notes:2026:q3"}, coordinate)
}

func TestParseCoordinateRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "30023", "30023:pk1", "x:pk1:slug", "30023::slug", "30023:pk1:"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseCoordinate(raw)
			assert.ErrorIs(t, err, ErrMalformedCoordinate)
		})
	}
}

func TestReportCoordinateDefaultsKind(t *testing.T) {
	report := Report{Author: "pk1", Slug: "weekly-report"}

	assert.Equal(t, "30023:pk1:weekly-report", report.Coordinate())
}

func TestConversationRecipientAndPreviewFallbacks(t *testing.T) {
	conversation := Conversation{Pubkey: "author", Title: "Fix bug"}

	assert.Equal(t, "author", conversation.RecipientPubkey())
	assert.Equal(t, "Fix bug", conversation.Preview())

	conversation.PTags = []string{"pk1", "pk2"}
	conversation.Summary = "Investigating flaky test"

	assert.Equal(t, "pk1", conversation.RecipientPubkey())
	assert.Equal(t, "Investigating flaky test", conversation.Preview())
}

func TestLatestReplySkipsToolCallsAndEmptyContent(t *testing.T) {
	messages := []Message{
		{ID: "1", Content: "first"},
		{ID: "2", Content: "second"},
		{ID: "3", Content: "", ToolName: ""},
		{ID: "4", Content: "delegating", ToolName: "delegate"},
	}

	latest, ok := LatestReply(messages)
	require.True(t, ok)
	assert.Equal(t, "2", latest.ID)

	_, ok = LatestReply(nil)
	assert.False(t, ok)
}
