package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"slguard/internal/halt"
	"slguard/internal/journal"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		configPath = ""
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := "risk:\n  halt_file: " + filepath.Join(dir, "HALT_TRADING.txt") +
		"\nruntime:\n  journal_path: " + filepath.Join(dir, "journal.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestHaltStatusNotHalted(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	out := execute(t, "halt", "status", "--config", cfg)

	var got haltStatus
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.False(t, got.Halted)
	assert.Empty(t, got.Events)
	assert.NoFileExists(t, filepath.Join(dir, "journal.db"))
}

func TestHaltStatusShowsJournal(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	require.NoError(t, halt.NewFileStore(filepath.Join(dir, "HALT_TRADING.txt")).Halt())

	j, err := journal.NewSQLite(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.Record(context.Background(), journal.Event{Time: now, Kind: journal.KindBreach, PnL: -5100}))
	require.NoError(t, j.Record(context.Background(), journal.Event{Time: now.Add(time.Minute), Kind: journal.KindHalted}))
	require.NoError(t, j.Close())

	out := execute(t, "halt", "status", "--config", cfg, "-n", "5")

	var got haltStatus
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.True(t, got.Halted)
	require.Len(t, got.Events, 2)
	assert.Equal(t, "halted", got.Events[0].Kind)
	assert.Equal(t, -5100.0, got.Events[1].PnL)
}

func TestVersion(t *testing.T) {
	assert.Equal(t, Version+"\n", execute(t, "version"))
}

func TestConfigHidesSecrets(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	t.Setenv("SLGUARD_EXCHANGE_API_KEY", "secret-key")

	out := execute(t, "config", "--config", cfg)

	assert.Contains(t, out, "stop_buffer: 10")
	assert.NotContains(t, out, "secret-key")
}
