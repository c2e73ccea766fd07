package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quillworks-ai/quill"
	"github.com/quillworks-ai/quill/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [run-id]",
		Short: "List recorded runs, or show one run in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer st.Close()

			if len(args) == 1 {
				return showRun(cmd, st, args[0])
			}
			return listRuns(cmd, st)
		},
	}
}

func listRuns(cmd *cobra.Command, st *store.Store) error {
	records, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		words := "-"
		if rec.Artifact != nil {
			words = strconv.Itoa(rec.Artifact.Metadata.WordCount)
		}
		detail := "-"
		if rec.FailedStage != "" {
			detail = rec.FailedStage
		}
		rows = append(rows, []string{
			shortID(rec.RunID),
			string(rec.Status),
			detail,
			fmt.Sprintf("%d/%d", len(rec.Stages), len(quill.StageOrder)),
			strconv.Itoa(rec.Usage.TotalTokens),
			words,
			rec.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	headers := []string{"RUN", "STATUS", "FAILED AT", "STAGES", "TOKENS", "WORDS", "UPDATED"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
	return nil
}

func showRun(cmd *cobra.Command, st *store.Store, runID string) error {
	rec, err := st.Get(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	out := cmd.OutOrStdout()
	colorize := false
	if file, ok := out.(*os.File); ok {
		colorize = shouldColorize(file)
	}

	fmt.Fprintf(out, "Run %s\n", rec.RunID)
	fmt.Fprintf(out, "  Status:   %s\n", paint(colorize, statusColor(rec.Status), string(rec.Status)))
	if rec.FailedStage != "" {
		fmt.Fprintf(out, "  Failed:   %s\n", paint(colorize, ansiRed, rec.FailedStage))
		fmt.Fprintf(out, "  Error:    %s\n", rec.Error)
	}
	fmt.Fprintf(out, "  Tokens:   %d\n", rec.Usage.TotalTokens)
	fmt.Fprintf(out, "  Created:  %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Updated:  %s\n", rec.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	if rec.Artifact != nil {
		fmt.Fprintf(out, "  Title:    %s\n", rec.Artifact.Title)
		fmt.Fprintf(out, "  Words:    %d (%d min read)\n",
			rec.Artifact.Metadata.WordCount, rec.Artifact.Metadata.ReadingTimeMinutes)
	}

	if len(rec.Stages) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(rec.Stages))
	var warnings []string
	for _, stage := range rec.Stages {
		duration := "-"
		if !stage.FinishedAt.IsZero() && !stage.StartedAt.IsZero() {
			duration = formatDuration(stage.FinishedAt.Sub(stage.StartedAt))
		}
		rows = append(rows, []string{
			stage.Stage,
			stage.Status,
			duration,
			strconv.Itoa(stage.Usage.TotalTokens),
			strconv.Itoa(len(stage.Warnings)),
		})
		for _, warning := range stage.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", stage.Stage, warning))
		}
	}

	headers := []string{"STAGE", "STATUS", "DURATION", "TOKENS", "WARNINGS"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))

	for _, warning := range warnings {
		fmt.Fprintln(out, paint(colorize, ansiYellow, "warn: "+warning))
	}
	return nil
}
