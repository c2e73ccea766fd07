package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quillworks-ai/quill"
	"github.com/quillworks-ai/quill/config"
	"github.com/quillworks-ai/quill/store"
)

type runOptions struct {
	briefPath   string
	profilePath string
	outputPath  string
	quiet       bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline once and print the artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.briefPath, "brief", "", "Path to the brief JSON file")
	cmd.Flags().StringVar(&opts.profilePath, "profile", "", "Path to the brand profile JSON file")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write the artifact JSON to this file instead of stdout")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress streamed draft content")
	_ = cmd.MarkFlagRequired("brief")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}

func runOnce(cmdCtx context.Context, ctx *commandContext, opts runOptions) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var brief quill.Brief
	if err := readJSONFile(opts.briefPath, &brief); err != nil {
		return fmt.Errorf("read brief: %w", err)
	}
	var profile quill.BrandProfile
	if err := readJSONFile(opts.profilePath, &profile); err != nil {
		return fmt.Errorf("read brand profile: %w", err)
	}

	run, err := buildPipeline(cfg).Run(signalCtx, brief, profile)
	if err != nil {
		return err
	}

	out := os.Stderr
	colorize := shouldColorize(out)
	for ev := range run.Next() {
		printEvent(out, ev, colorize, opts.quiet)
	}

	state := run.State()
	var artifact *quill.Artifact
	if state.Status == quill.StatusComplete {
		artifact, err = run.Artifact()
		if err != nil {
			return err
		}
	}
	persistRun(cfg, state, artifact, out)

	if path := run.TraceFilepath(); path != "" {
		fmt.Fprintf(out, "trace: %s\n", path)
	}

	switch state.Status {
	case quill.StatusComplete:
		if err := writeArtifact(opts.outputPath, artifact); err != nil {
			return err
		}
		if opts.outputPath != "" {
			fmt.Fprintf(out, "artifact: %s\n", opts.outputPath)
		}
		return nil
	case quill.StatusCancelled:
		return context.Canceled
	default:
		return fmt.Errorf("run %s failed at %s: %s", shortID(state.RunID), state.FailedStage, state.Error)
	}
}

func readJSONFile(path string, target any) error {
	if path == "" {
		return fmt.Errorf("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeArtifact(path string, artifact *quill.Artifact) error {
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// persistRun records the terminal run in the store so `quill status` can
// report it. Failures only warn; the run outcome matters more than the
// bookkeeping.
func persistRun(cfg *config.Config, state quill.RunState, artifact *quill.Artifact, out io.Writer) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(out, "warn: unable to open run store: %v\n", err)
		return
	}
	defer st.Close()

	if err := st.Save(nil, store.NewRecord(state, artifact)); err != nil {
		fmt.Fprintf(out, "warn: unable to persist run: %v\n", err)
	}
}
