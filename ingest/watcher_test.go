package ingest_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hillwire/powergraph/ingest"
)

func writeBatch(t *testing.T, path string, batch *ingest.ObservationBatch) {
	t.Helper()
	data, err := json.Marshal(batch)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestWatcherProcessesExistingAndNewFiles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inbox := t.TempDir()

	// Already in the inbox before the watcher starts
	writeBatch(t, filepath.Join(inbox, "roster.json"), rosterBatch())

	w, err := ingest.NewWatcher(inbox, f.processor, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Start(ctx))

	_, err = f.entities.GetByNaturalKey(ctx, "dana-whitfield")
	require.NoError(t, err, "initial sweep processes files already present")

	// Dropped in after the watcher started
	writeBatch(t, filepath.Join(inbox, "directory.json"), &ingest.ObservationBatch{
		Source: "staff-directory-agent",
		Entities: []ingest.EntityObservation{
			{NaturalKey: "new-aide", EntityType: "staff", Name: "New Aide"},
		},
	})

	require.Eventually(t, func() bool {
		_, err := f.entities.GetByNaturalKey(ctx, "new-aide")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond, "watcher picks up new inbox files")
}

func TestWatcherIgnoresNonBatchFiles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inbox := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("scratch"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, ".hidden.json"), []byte("{}"), 0o644))

	w, err := ingest.NewWatcher(inbox, f.processor, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Start(ctx))

	all, err := f.entities.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestWatcherMissingDirectoryFails(t *testing.T) {
	f := setup(t)

	_, err := ingest.NewWatcher(filepath.Join(t.TempDir(), "absent"), f.processor, 0, nil)
	require.Error(t, err)
}
