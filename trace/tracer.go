package trace

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var traceSync = sync.Mutex{}

// Config controls where trace files are written and how long they are
// kept.
type Config struct {
	Directory         string
	RetentionDuration time.Duration
	MaxTraceFiles     int
}

const (
	defaultRetentionDuration = 7 * 24 * time.Hour
	defaultMaxTraceFiles     = 20
)

// Tracer opens one trace file per pipeline run and prunes old files on
// each new run.
type Tracer struct {
	config  Config
	counter int64
}

func NewTracer(config ...Config) *Tracer {
	cfg := Config{
		Directory:         filepath.Join(os.TempDir(), "quill-traces"),
		RetentionDuration: defaultRetentionDuration,
		MaxTraceFiles:     defaultMaxTraceFiles,
	}

	if len(config) > 0 {
		if config[0].Directory != "" {
			cfg.Directory = config[0].Directory
		}
		if config[0].RetentionDuration > 0 {
			cfg.RetentionDuration = config[0].RetentionDuration
		}
		if config[0].MaxTraceFiles > 0 {
			cfg.MaxTraceFiles = config[0].MaxTraceFiles
		}
	}

	os.MkdirAll(cfg.Directory, 0755)

	return &Tracer{config: cfg}
}

// NewRun opens the trace file for one pipeline run.
func (tr *Tracer) NewRun(runID string) *Run {
	timestamp := time.Now().Format("20060102150405")
	counter := atomic.AddInt64(&tr.counter, 1)
	path := filepath.Join(tr.config.Directory, fmt.Sprintf("trace-%s.%03d.txt", timestamp, counter))

	tr.cleanup()

	run := &Run{
		runID:     runID,
		startTime: time.Now(),
		filepath:  path,
	}
	run.writeToFile(func(w io.Writer) {
		fmt.Fprintf(w, "==== Run %s\nStart Time: %s\n", runID, run.startTime.Format(time.RFC3339))
	})
	return run
}

// cleanup removes trace files past the retention window and keeps at most
// MaxTraceFiles of the newest remainder.
func (tr *Tracer) cleanup() {
	entries, err := os.ReadDir(tr.config.Directory)
	if err != nil {
		slog.Error("Failed to read trace directory", "error", err)
		return
	}

	type traceFile struct {
		path    string
		modTime time.Time
	}
	var files []traceFile

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "trace-") || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, traceFile{
			path:    filepath.Join(tr.config.Directory, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	cutoff := time.Now().Add(-tr.config.RetentionDuration)
	keepFrom := 0
	if tr.config.MaxTraceFiles > 0 && len(files) > tr.config.MaxTraceFiles {
		keepFrom = len(files) - tr.config.MaxTraceFiles
	}

	for i, file := range files {
		expired := tr.config.RetentionDuration > 0 && file.modTime.Before(cutoff)
		if i >= keepFrom && !expired {
			continue
		}
		if err := os.Remove(file.path); err != nil {
			slog.Error("Failed to remove trace file", "file", file.path, "error", err)
		} else {
			slog.Debug("Removed trace file", "file", filepath.Base(file.path))
		}
	}
}
