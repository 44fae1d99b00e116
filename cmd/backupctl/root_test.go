package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"transit-console/internal/backup/adapter/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"collections", "create", "list", "stats", "delete", "sweep", "restore", "token"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestRestoreCommand_DefaultsToMissingOnly(t *testing.T) {
	flag := restoreCmd.Flags().Lookup("mode")
	require.NotNil(t, flag)
	assert.Equal(t, "missing-only", flag.DefValue)
}

func TestRestoreCommand_RejectsUnknownMode(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://127.0.0.1:1")
	rootCmd.SetArgs([]string{"restore", "backup_1", "--mode", "replace-all", "--env-file", "missing.env"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	assert.Error(t, err)
}

func TestTokenCommand_IssuesValidToken(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://127.0.0.1:1")
	t.Setenv("JWT_SECRET_KEY", "cli-secret")
	t.Setenv("JWT_ISSUER", "transit-console")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "op-9", "--env-file", "missing.env"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()
	require.NoError(t, rootCmd.Execute())

	tokens, err := security.NewJWTokenService(security.TokenConfig{
		SecretKey: "cli-secret",
		Issuer:    "transit-console",
		TTL:       time.Minute,
	})
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(context.Background(), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "op-9", claims.OperatorID())
	assert.Equal(t, "super_operator", claims.Role)
}
