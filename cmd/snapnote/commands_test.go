package main

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/snapnote/server/runner/interpret"
)

func newWorkerFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().String("note-id", "", "")
	cmd.Flags().String("image-url", "", "")
	cmd.Flags().String("payload", "", "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestResolveJob(t *testing.T) {
	t.Setenv(interpret.EnvJobPayload, `{"noteId":"env","imageUrl":"s3://b/env.jpg"}`)

	job, err := resolveJob(newWorkerFlags(t, "--note-id", "n1", "--image-url", "s3://b/k.jpg"))
	require.NoError(t, err)
	assert.Equal(t, interpret.Job{NoteID: "n1", ImageURL: "s3://b/k.jpg"}, job)

	job, err = resolveJob(newWorkerFlags(t, "--payload", `{"noteId":"p","imageUrl":"s3://b/p.jpg"}`))
	require.NoError(t, err)
	assert.Equal(t, "p", job.NoteID)

	job, err = resolveJob(newWorkerFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "env", job.NoteID)

	_, err = resolveJob(newWorkerFlags(t, "--note-id", "n1"))
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	assert.NoError(t, setupLogger("json", "debug"))
	assert.NoError(t, setupLogger("text", "warn"))
	assert.Error(t, setupLogger("xml", "info"))
	assert.Error(t, setupLogger("text", "loud"))
}

func TestLoadProfileFlagBeatsEnv(t *testing.T) {
	t.Setenv("SNAPNOTE_DRIVER", "sqlite")
	t.Setenv("SNAPNOTE_DSN", filepath.Join(t.TempDir(), "env.db"))

	flagDSN := filepath.Join(t.TempDir(), "flag.db")
	require.NoError(t, rootCmd.PersistentFlags().Set("dsn", flagDSN))
	t.Cleanup(func() {
		_ = rootCmd.PersistentFlags().Set("dsn", "")
		rootCmd.PersistentFlags().Lookup("dsn").Changed = false
	})

	p, err := loadProfile()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", p.Driver)
	assert.Equal(t, flagDSN, p.DSN)
}
