package quill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeModelJSON(t *testing.T) {
	type outline struct {
		Title string `json:"title"`
	}

	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "CleanObject",
			content: `{"title": "Remote Work"}`,
			want:    "Remote Work",
		},
		{
			name:    "FencedWithLanguage",
			content: "```json\n{\"title\": \"Remote Work\"}\n```",
			want:    "Remote Work",
		},
		{
			name:    "FencedWithoutLanguage",
			content: "```\n{\"title\": \"Remote Work\"}\n```",
			want:    "Remote Work",
		},
		{
			name:    "LeadingProse",
			content: "Here is the JSON you asked for:\n\n{\"title\": \"Remote Work\"}\n\nLet me know if you need changes.",
			want:    "Remote Work",
		},
		{
			name:    "SurroundingWhitespace",
			content: "\n\n  {\"title\": \"Remote Work\"}  \n",
			want:    "Remote Work",
		},
		{
			name:    "Empty",
			content: "   ",
			wantErr: true,
		},
		{
			name:    "NoObjectAtAll",
			content: "I am sorry, I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "TruncatedObject",
			content: `{"title": "Remote`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got outline
			err := DecodeModelJSON(tt.content, &got)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Title)
		})
	}
}

func TestDecodeModelJSONArray(t *testing.T) {
	var got []int
	err := DecodeModelJSON("The counts are:\n[1, 2, 3]", &got)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestDecodeModelJSONErrorCarriesSnippet(t *testing.T) {
	var got map[string]any
	err := DecodeModelJSON("not even close", &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload snippet")
	assert.Contains(t, err.Error(), "not even close")
}
