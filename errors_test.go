package quill

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quillworks-ai/quill/ai"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"Nil", nil, ""},
		{"Validation", fmt.Errorf("%w: empty topic", ErrValidation), ErrorKindValidation},
		{"Parse", fmt.Errorf("%w: bad json", ErrParse), ErrorKindParse},
		{"Budget", fmt.Errorf("%w: 5000 of 4000 tokens used", ai.ErrBudgetExceeded), ErrorKindBudget},
		{"Cancelled", context.Canceled, ErrorKindCancelled},
		{"DeadlineExceeded", context.DeadlineExceeded, ErrorKindCancelled},
		{"Temporary", fmt.Errorf("%w: 503 service unavailable", ai.ErrTemporary), ErrorKindProvider},
		{"StatusError", ai.StatusError{StatusCode: 401, Status: "401 Unauthorized"}, ErrorKindProvider},
		{"WrappedStatusError", fmt.Errorf("call failed: %w", ai.StatusError{StatusCode: 500}), ErrorKindProvider},
		{"Unknown", errors.New("boom"), ErrorKindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestClassifyErrorBudgetWinsOverProvider(t *testing.T) {
	// a budget error wrapped by provider plumbing still classifies as budget
	err := fmt.Errorf("%w: %w", ai.ErrTemporary, ai.ErrBudgetExceeded)
	assert.Equal(t, ErrorKindBudget, ClassifyError(err))
}

func TestWrapStage(t *testing.T) {
	err := WrapStage(ErrParse, StageEditor, "revise draft", "revised body is empty", nil)
	assert.ErrorIs(t, err, ErrParse)
	assert.Contains(t, err.Error(), "editor")
	assert.Contains(t, err.Error(), "revise draft")
	assert.Contains(t, err.Error(), "revised body is empty")

	cause := errors.New("connection reset")
	err = WrapStage(nil, StageWriter, "draft section", "Opening", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "writer: draft section: Opening")
}

func TestDegradable(t *testing.T) {
	assert.False(t, degradable(nil))
	assert.False(t, degradable(fmt.Errorf("%w: spent", ai.ErrBudgetExceeded)))
	assert.False(t, degradable(context.Canceled))
	assert.False(t, degradable(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))

	assert.True(t, degradable(fmt.Errorf("%w: flaky upstream", ai.ErrTemporary)))
	assert.True(t, degradable(fmt.Errorf("%w: bad json", ErrParse)))
	assert.True(t, degradable(errors.New("misc failure")))
}
