package trace

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/quillworks-ai/quill/ai"
)

// Run is the trace of one pipeline run: every model exchange and stage
// outcome appended to a single human-readable file. Writes are serialized
// across concurrent runs.
type Run struct {
	runID     string
	startTime time.Time
	endTime   time.Time
	filepath  string
}

func (r *Run) Filepath() string {
	return r.filepath
}

func (r *Run) writeToFile(fn func(io.Writer)) {
	file, err := os.OpenFile(r.filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("Failed to open trace file for writing", "file", r.filepath, "error", err)
		return
	}
	defer file.Close()

	fn(file)
	file.Sync()
}

// RecordCall writes one model exchange: the request messages and the
// response, or the error the call returned.
func (r *Run) RecordCall(stage, model string, messages []ai.Message, response ai.AIMessage, callErr error) {
	traceSync.Lock()
	defer traceSync.Unlock()

	r.writeToFile(func(w io.Writer) {
		fmt.Fprintf(w, "\n====> [%s] Start %s (%s) runID: %s\n", time.Now().Format("15:04:05"), stage, model, r.runID)
		for _, message := range messages {
			role, content := message.Value()
			fmt.Fprintf(w, "⬆️  %s:\n", role)
			r.logContent(w, "content", content)
		}
		if callErr != nil {
			fmt.Fprintf(w, "❌ Error: %v\n", callErr)
		} else {
			fmt.Fprintf(w, "⬇️  assistant: role=%s\n", response.Role)
			r.logContent(w, "content", response.Content)
			if response.Think != "" {
				r.logContent(w, "think", response.Think)
			}
		}
		fmt.Fprintf(w, "==== [%s] End %s\n", time.Now().Format("15:04:05"), stage)
	})
}

// RecordStage writes a stage outcome line.
func (r *Run) RecordStage(stage, status string, duration time.Duration, stageErr error) {
	traceSync.Lock()
	defer traceSync.Unlock()

	r.writeToFile(func(w io.Writer) {
		if stageErr != nil {
			fmt.Fprintf(w, "---- Stage %s: %s in %s: %v\n", stage, status, duration.Round(time.Millisecond), stageErr)
			return
		}
		fmt.Fprintf(w, "---- Stage %s: %s in %s\n", stage, status, duration.Round(time.Millisecond))
	})
}

func (r *Run) logContent(w io.Writer, label, content string) {
	if content == "" {
		fmt.Fprintf(w, " %s: (empty)\n", label)
		return
	}
	fmt.Fprintf(w, " %s:\n", label)
	for _, line := range strings.Split(content, "\n") {
		if line != "" {
			fmt.Fprintf(w, "   %s\n", line)
		}
	}
}

func (r *Run) Close() error {
	traceSync.Lock()
	defer traceSync.Unlock()

	r.endTime = time.Now()
	r.writeToFile(func(w io.Writer) {
		fmt.Fprintf(w, "End Time: %s\n", r.endTime.Format(time.RFC3339))
	})
	return nil
}
