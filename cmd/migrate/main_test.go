package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_SortedWithChecksum(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_b.sql"), []byte("SELECT 2;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_a.sql"), []byte("SELECT 1;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	all, err := loadMigrations(dir)

	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "001_a.sql", all[0].Filename)
	assert.Equal(t, "002_b.sql", all[1].Filename)
	assert.Len(t, all[0].Checksum, 64)
	assert.NotEqual(t, all[0].Checksum, all[1].Checksum)
}

func TestPendingMigrations(t *testing.T) {
	a := migration{Filename: "001_a.sql", Checksum: calculateChecksum([]byte("a"))}
	b := migration{Filename: "002_b.sql", Checksum: calculateChecksum([]byte("b"))}

	pending, err := pendingMigrations([]migration{a, b}, map[string]string{a.Filename: a.Checksum})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "002_b.sql", pending[0].Filename)

	// 実行済みファイルの内容変更は検出する
	_, err = pendingMigrations([]migration{a, b}, map[string]string{a.Filename: "tampered"})
	assert.Error(t, err)
}

func TestRepositoryMigrationsLoad(t *testing.T) {
	all, err := loadMigrations(filepath.Join("..", "..", "migrations"))

	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Contains(t, string(all[0].Content), "ledger_documents")
}
