package quill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBriefValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		brief := testBrief()
		assert.NoError(t, brief.Validate())
	})

	t.Run("DefaultsContentType", func(t *testing.T) {
		brief := testBrief()
		brief.ContentType = ""
		require.NoError(t, brief.Validate())
		assert.Equal(t, ContentTypeArticle, brief.ContentType)
	})

	t.Run("BlankTopic", func(t *testing.T) {
		brief := testBrief()
		brief.Topic = " \t "
		assert.ErrorIs(t, brief.Validate(), ErrValidation)
	})

	t.Run("NegativeWordCount", func(t *testing.T) {
		brief := testBrief()
		brief.WordCount = -100
		assert.ErrorIs(t, brief.Validate(), ErrValidation)
	})

	t.Run("UnknownContentType", func(t *testing.T) {
		brief := testBrief()
		brief.ContentType = "podcast"
		err := brief.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "podcast")
	})
}

func TestBrandProfileValidate(t *testing.T) {
	profile := testProfile()
	assert.NoError(t, profile.Validate())

	profile.Name = ""
	assert.ErrorIs(t, profile.Validate(), ErrValidation)
}
