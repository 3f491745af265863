package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twohreichel/pisovereign/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCleanTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, cleanTags([]string{" a ", "", "b", "  "}))
	assert.Equal(t, []string{}, cleanTags(nil))
}

func TestAppUserID(t *testing.T) {
	defer func() { userID = "" }()
	fromEnv := uuid.New()

	app := &App{Config: &config.AppConfig{UserID: fromEnv.String()}}

	id, err := app.UserID()
	require.NoError(t, err)
	assert.Equal(t, fromEnv, id)

	flag := uuid.New()
	userID = flag.String()
	id, err = app.UserID()
	require.NoError(t, err)
	assert.Equal(t, flag, id)

	userID = "nope"
	_, err = app.UserID()
	assert.ErrorContains(t, err, "invalid --user")

	userID = ""
	_, err = (&App{Config: &config.AppConfig{}}).UserID()
	assert.ErrorIs(t, err, errNoUser)
}

func TestInitStorage_UnknownDriver(t *testing.T) {
	_, _, err := initStorage(context.Background(), &config.AppConfig{StorageDriver: "mongo"})
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end CLI test in short mode")
	}

	runtime := t.TempDir()
	t.Setenv("SOVEREIGN_RUNTIME_PATH", runtime)
	t.Setenv("SOVEREIGN_EMBEDDING_PROVIDER", "local")
	t.Setenv("SOVEREIGN_USER_ID", "")

	out, err := execute(t, "init")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Initialized")

	envData, err := os.ReadFile(filepath.Join(runtime, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(envData), "SOVEREIGN_MEMORY_ENABLE_ENCRYPTION=true")

	var user string
	for _, line := range strings.Split(string(envData), "\n") {
		if v, ok := strings.CutPrefix(line, "SOVEREIGN_USER_ID="); ok {
			user = strings.Trim(v, `"`)
		}
	}
	require.NotEmpty(t, user)

	key, err := os.ReadFile(filepath.Join(runtime, "memory_encryption.key"))
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = execute(t, "init")
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, "--user", user, "remember", "Paris is the capital of France", "--importance", "0.8")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Remembered")

	out, err = execute(t, "--user", user, "recall", "What is the capital of France?")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Relevant context from memory:")
	assert.Contains(t, out, "Paris is the capital of France")

	out, err = execute(t, "--user", user, "stats")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Total")

	_, err = execute(t, "keygen")
	assert.ErrorContains(t, err, "already exists")
}
