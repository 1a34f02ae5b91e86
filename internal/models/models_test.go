package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlternatingHistory(t *testing.T) {
	req := &GenerationRequest{History: []ChatTurn{
		{Role: RoleAssistant, Content: "welcome"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleUser, Content: "anyone?"},
		{Role: RoleAssistant, Content: "  "},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "dangling"},
	}}

	got := req.AlternatingHistory()
	assert.Equal(t, []ChatTurn{
		{Role: RoleUser, Content: "hi\n\nanyone?"},
		{Role: RoleAssistant, Content: "hello"},
	}, got)
}

func TestTagsNormalisationAndScan(t *testing.T) {
	tags := NewTags(" Auto", "external_model", "auto", "")
	assert.Equal(t, Tags{"auto", "external_model"}, tags)

	v, err := tags.Value()
	require.NoError(t, err)
	assert.Equal(t, `["auto","external_model"]`, v)

	var scanned Tags
	require.NoError(t, scanned.Scan([]byte(`["x"]`)))
	assert.Equal(t, Tags{"x"}, scanned)
	require.NoError(t, scanned.Scan(nil))
	assert.Equal(t, Tags{}, scanned)
	assert.Error(t, scanned.Scan(42))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobPending.Terminal())
	assert.False(t, JobRunning.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.True(t, FeedbackCorrection.Valid())
	assert.False(t, FeedbackType("meh").Valid())
}
