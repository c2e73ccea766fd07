package quill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRecordAndProject(t *testing.T) {
	c := NewContext(testBrief(), testProfile())

	voice := BrandVoice{Summary: "Plainspoken.", Traits: []string{"direct"}}
	require.NoError(t, c.Record(StageResult{
		StageID: StageBrandAnalyzer,
		Status:  StageSucceeded,
		Payload: voice,
	}))

	got, err := c.BrandVoice()
	require.NoError(t, err)
	assert.Equal(t, voice, got)

	_, err = c.Outline()
	require.Error(t, err, "unrecorded stages cannot be projected")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestContextRejectsDuplicateStage(t *testing.T) {
	c := NewContext(testBrief(), testProfile())

	result := StageResult{StageID: StageWriter, Status: StageSucceeded, Payload: Draft{Body: "x"}}
	require.NoError(t, c.Record(result))

	err := c.Record(result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already recorded")
}

func TestContextRejectsKindMismatch(t *testing.T) {
	c := NewContext(testBrief(), testProfile())

	// the writer's slot holding an outline is a pipeline bug, not a panic
	require.NoError(t, c.Record(StageResult{
		StageID: StageWriter,
		Status:  StageSucceeded,
		Payload: Outline{Title: "wrong kind"},
	}))

	_, err := c.Draft()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), string(PayloadOutline))
}

func TestContextResultsAreCopies(t *testing.T) {
	c := NewContext(testBrief(), testProfile())
	require.NoError(t, c.Record(StageResult{StageID: StageBrandAnalyzer, Status: StageSucceeded}))

	results := c.Results()
	results[0].StageID = "tampered"

	fresh, ok := c.Result(StageBrandAnalyzer)
	require.True(t, ok)
	assert.Equal(t, StageBrandAnalyzer, fresh.StageID)
}
