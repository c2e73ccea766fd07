package quill

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quillworks-ai/quill/ai"
)

var (
	// ErrValidation marks malformed inputs and missing stage prerequisites,
	// rejected before any model call is made.
	ErrValidation = errors.New("validation error")

	// ErrParse marks model output that violates a stage's structural
	// contract. Parsers fail closed: partial or ambiguous payloads are
	// rejected, never silently accepted.
	ErrParse = errors.New("parse error")
)

// ErrorKind classifies a failure for callers that need to branch on the
// cause without unwrapping error chains.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindProvider   ErrorKind = "provider"
	ErrorKindParse      ErrorKind = "parse"
	ErrorKindBudget     ErrorKind = "budget"
	ErrorKindCancelled  ErrorKind = "cancelled"
	ErrorKindInternal   ErrorKind = "internal"
)

// WrapStage builds an error message that includes stage context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors.
func WrapStage(marker error, stageID, operation, message string, err error) error {
	detail := buildDetail(stageID, operation, message)
	if marker == nil {
		return fmt.Errorf("%s: %w", detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stageID, operation, message string) string {
	parts := make([]string, 0, 3)
	if stageID = strings.TrimSpace(stageID); stageID != "" {
		parts = append(parts, stageID)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "stage failure"
	}
	return strings.Join(parts, ": ")
}

// ClassifyError maps an error chain to its kind.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ai.ErrBudgetExceeded):
		return ErrorKindBudget
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCancelled
	case errors.Is(err, ErrValidation):
		return ErrorKindValidation
	case errors.Is(err, ErrParse):
		return ErrorKindParse
	case errors.Is(err, ai.ErrTemporary):
		return ErrorKindProvider
	default:
		var statusErr ai.StatusError
		if errors.As(err, &statusErr) {
			return ErrorKindProvider
		}
		var apiErr interface{ StatusCode() int }
		if errors.As(err, &apiErr) {
			return ErrorKindProvider
		}
		return ErrorKindInternal
	}
}

// degradable reports whether an enrichment stage may absorb err into a
// warning. Budget exhaustion and cancellation always propagate.
func degradable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ai.ErrBudgetExceeded) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
