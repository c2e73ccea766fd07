package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/quillworks-ai/quill"
	"github.com/quillworks-ai/quill/event"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(colorize bool, color, text string) string {
	if !colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

func statusColor(status quill.Status) string {
	switch status {
	case quill.StatusComplete:
		return ansiGreen
	case quill.StatusStageFailed:
		return ansiRed
	case quill.StatusCancelled:
		return ansiYellow
	case quill.StatusRunning:
		return ansiBlue
	default:
		return ""
	}
}

func printEvent(out io.Writer, ev event.Event, colorize, quiet bool) {
	switch e := ev.(type) {
	case *event.StageStartedEvent:
		fmt.Fprintln(out, paint(colorize, ansiBlue, "→ "+e.StageID))
	case *event.StageProgressEvent:
		if !quiet {
			fmt.Fprint(out, e.Fragment)
		}
	case *event.StageFinishedEvent:
		if e.Status == string(quill.StageFailed) {
			fmt.Fprintln(out, paint(colorize, ansiRed, fmt.Sprintf("✗ %s: %v", e.StageID, e.Err)))
			return
		}
		fmt.Fprintln(out, paint(colorize, ansiGreen,
			fmt.Sprintf("✓ %s (%s, %d tokens)", e.StageID, formatDuration(e.Duration), e.Usage.TotalTokens)))
		for _, warning := range e.Warnings {
			fmt.Fprintln(out, paint(colorize, ansiYellow, "  warn: "+warning))
		}
	case *event.RunCompletedEvent:
		fmt.Fprintln(out, paint(colorize, ansiGreen,
			fmt.Sprintf("run %s complete in %s, %d tokens", shortID(e.RunID), formatDuration(e.Duration), e.Usage.TotalTokens)))
	case *event.RunFailedEvent:
		fmt.Fprintln(out, paint(colorize, ansiRed,
			fmt.Sprintf("run %s failed at %s: %v", shortID(e.RunID), e.StageID, e.Err)))
	case *event.RunCancelledEvent:
		fmt.Fprintln(out, paint(colorize, ansiYellow, fmt.Sprintf("run %s cancelled", shortID(e.RunID))))
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return d.Round(time.Second).String()
	case d >= time.Second:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
