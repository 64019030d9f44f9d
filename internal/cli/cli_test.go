package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/treeroute/treeroute/internal/api/middleware"
)

const testSecret = "cli-secret"

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	data, err := yaml.Marshal(map[string]interface{}{
		"database": map[string]interface{}{
			"driver": "sqlite",
			"sqlite": map[string]interface{}{"path": filepath.Join(dir, "treeroute.db")},
		},
		"auth":    map[string]interface{}{"jwt_secret": testSecret},
		"logging": map[string]interface{}{"level": "error", "output": "stderr"},
	})
	require.NoError(t, err)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		tokenTTL = 0
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands_SQLiteLifecycle(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "migrate", "up")
	require.NoError(t, err)

	out, err := run(t, "--config", cfg, "users", "create", "ada")
	require.NoError(t, err)
	assert.Contains(t, out, `Created user "ada" with id 1`)

	_, err = run(t, "--config", cfg, "users", "create", "ada")
	assert.Error(t, err, "usernames are unique")

	out, err = run(t, "--config", cfg, "achievements", "backfill")
	require.NoError(t, err)
	assert.Contains(t, out, "Unlocked 0 achievements")

	out, err = run(t, "--config", cfg, "users", "create", "bob", "--token-ttl", "1h")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	claims, err := middleware.NewAuthenticator(testSecret).Parse(lines[1])
	require.NoError(t, err)
	assert.Equal(t, uint(2), claims.UserID)
	assert.Equal(t, "bob", claims.Username)
}

func TestMigrate_VersionedCommandsRequirePostgres(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "migrate", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "require the postgres driver")

	_, err = run(t, "--config", cfg, "migrate", "steps", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid step count")
}

func TestUsersCreate_RejectsBlankName(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t), "users", "create", "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be empty")
}

func TestCommand_MissingConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
