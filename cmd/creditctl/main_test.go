package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const memoryConfig = `
jwt:
  secret: "cli-test-secret"
log:
  level: "error"
store:
  driver: "memory"
redis:
  enabled: false
ledger:
  driver: "memory"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestStats(t *testing.T) {
	cfg := writeConfig(t, memoryConfig)

	out, err := execute(t, "stats", "--config", cfg)
	require.NoError(t, err)

	var stats map[string]int64
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, int64(0), stats["credits"])
	assert.Contains(t, stats, "users")
}

func TestReconcile_UnknownCredit(t *testing.T) {
	cfg := writeConfig(t, memoryConfig)

	_, err := execute(t, "reconcile", uuid.NewString(), "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRD_002")
}

func TestReconcile_InvalidID(t *testing.T) {
	_, err := execute(t, "reconcile", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credit id")
}

func TestReattach_RequiresTwoArgs(t *testing.T) {
	_, err := execute(t, "reattach", uuid.NewString())
	require.Error(t, err)
}

func TestReplaySettlement_RequiresBuyer(t *testing.T) {
	cfg := writeConfig(t, memoryConfig)

	_, err := execute(t, "replay-settlement", uuid.NewString(), "tx-1", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buyer")
}

func TestClearCredits(t *testing.T) {
	cfg := writeConfig(t, memoryConfig)

	t.Run("requires confirmation", func(t *testing.T) {
		_, err := execute(t, "clear-credits", "--config", cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--yes")
	})

	t.Run("confirmed", func(t *testing.T) {
		out, err := execute(t, "clear-credits", "--yes", "--config", cfg, "--operator", uuid.NewString())
		require.NoError(t, err)
		assert.JSONEq(t, `{"deleted":0}`, out)
	})
}

func TestInvalidOperator(t *testing.T) {
	cfg := writeConfig(t, memoryConfig)

	_, err := execute(t, "stats", "--config", cfg, "--operator", "bob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--operator")
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	cfg := writeConfig(t, memoryConfig)

	_, err := execute(t, "migrate", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver=postgres")
}
