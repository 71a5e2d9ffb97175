package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hrygo/snapnote/internal/errors"
	"github.com/hrygo/snapnote/server/retrieval"
	"github.com/hrygo/snapnote/server/runner/interpret"
)

var (
	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "Interpret one note image and commit the result",
		Long: `Interpret one note image. The job is read from --note-id/--image-url,
then --payload, then the JOB_PAYLOAD or NOTE_ID and IMAGE_URL environment variables.`,
		Args: cobra.NoArgs,
		RunE: runWorker,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Periodically re-drive notes whose interpretation is still pending",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}

	searchCmd = &cobra.Command{
		Use:   "search",
		Short: "Search an owner's notes",
		Args:  cobra.NoArgs,
		RunE:  runSearch,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Install the latest schema on an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			a.Close()
			slog.Info("database is up to date", "driver", a.profile.Driver)
			return nil
		},
	}
)

func init() {
	workerCmd.Flags().String("note-id", "", "note UID to commit against")
	workerCmd.Flags().String("image-url", "", "object URI of the note image")
	workerCmd.Flags().String("payload", "", `JSON job payload {"noteId","imageUrl"}`)

	searchCmd.Flags().String("owner", "", "owner whose notes are searched (required)")
	searchCmd.Flags().String("query", "", "search query (required)")
	searchCmd.Flags().Int("candidates", retrieval.DefaultCandidateCount, "notes fetched by vector similarity")
	searchCmd.Flags().Int("limit", retrieval.DefaultFinalCount, "notes returned after lexical re-ranking")
}

func resolveJob(cmd *cobra.Command) (interpret.Job, error) {
	noteID, _ := cmd.Flags().GetString("note-id")
	imageURL, _ := cmd.Flags().GetString("image-url")
	if noteID != "" || imageURL != "" {
		job := interpret.Job{NoteID: noteID, ImageURL: imageURL}
		return job, job.Validate()
	}
	if payload, _ := cmd.Flags().GetString("payload"); payload != "" {
		return interpret.ParseJobPayload(payload)
	}
	return interpret.JobFromEnv(os.Getenv)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	job, err := resolveJob(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner(ctx)
	if err != nil {
		return err
	}

	result, runErr := runner.RunOne(ctx, job)
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("%s: %w", errors.GetCodeFromError(runErr, "UNKNOWN"), runErr)
	}
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner(ctx)
	if err != nil {
		return err
	}

	slog.Info("interpretation sweeper started",
		"interval", a.profile.SweepInterval,
		"grace_period", a.profile.SweepGracePeriod,
		"concurrency", a.profile.WorkerConcurrency,
	)
	runner.Run(ctx)

	snap := a.metrics.Snapshot()
	slog.Info("interpretation sweeper summary",
		"runs", snap.RunsTotal,
		"failed", snap.RunsFailed,
		"success_rate", snap.SuccessRate(),
	)
	return nil
}

// searchOutput is one printed search hit.
type searchOutput struct {
	UID          string         `json:"uid"`
	OwnerID      string         `json:"ownerId"`
	ImageURL     string         `json:"imageUrl"`
	Title        string         `json:"title"`
	Summary      string         `json:"summary"`
	Metadata     map[string]any `json:"metadata"`
	CreatedTs    int64          `json:"createdTs"`
	Similarity   float32        `json:"similarityScore"`
	LexicalScore float64        `json:"lexicalScore"`
}

func runSearch(cmd *cobra.Command, _ []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	query, _ := cmd.Flags().GetString("query")
	candidates, _ := cmd.Flags().GetInt("candidates")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.engine(ctx)
	if err != nil {
		return err
	}

	results, err := engine.Search(ctx, &retrieval.SearchRequest{
		OwnerID:        owner,
		Query:          query,
		CandidateCount: candidates,
		FinalCount:     limit,
	})
	if err != nil {
		return err
	}

	out := make([]searchOutput, 0, len(results))
	for _, c := range results {
		out = append(out, searchOutput{
			UID:          c.Note.UID,
			OwnerID:      c.Note.OwnerID,
			ImageURL:     c.Note.ImageURL,
			Title:        c.Note.Title,
			Summary:      c.Note.Summary,
			Metadata:     c.Note.Metadata,
			CreatedTs:    c.Note.CreatedTs,
			Similarity:   c.Similarity,
			LexicalScore: c.LexicalScore,
		})
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
