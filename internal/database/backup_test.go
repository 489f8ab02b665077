package database

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"tablebook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformBackup(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tablebook.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("payload"), 0o644))

	logger := zerolog.New(io.Discard)
	backupDir := filepath.Join(dir, "backups")
	svc := NewBackupService(dbPath, config.BackupConfig{
		Enabled:     true,
		StoragePath: backupDir,
	}, &logger)

	require.NoError(t, svc.PerformBackup())

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	copied, err := os.ReadFile(filepath.Join(backupDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(copied))
}

func TestCleanupOldBackups(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.New(io.Discard)

	// One ancient backup, one recent, one unrelated file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup_20200101_000000.db"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup_29990101_000000.db"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	svc := NewBackupService("", config.BackupConfig{
		Enabled:       true,
		StoragePath:   dir,
		RetentionDays: 7,
	}, &logger)
	svc.CleanupOldBackups()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"backup_29990101_000000.db", "notes.txt"}, names)
}
