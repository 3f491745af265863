package encryption

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twohreichel/pisovereign/internal/config"
	"github.com/twohreichel/pisovereign/internal/core"
)

func newTestChaCha(t *testing.T) *ChaCha {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	c, err := NewChaCha(key)
	require.NoError(t, err)
	return c
}

func TestChaCha_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestChaCha(t)

	for _, plain := range []string{"", "hello", "Paris ist die Hauptstadt von Frankreich 🇫🇷"} {
		sealed, err := c.EncryptString(ctx, plain)
		require.NoError(t, err)
		if plain != "" {
			assert.NotContains(t, sealed, plain)
		}

		opened, err := c.DecryptString(ctx, sealed)
		require.NoError(t, err)
		assert.Equal(t, plain, opened)
	}
}

func TestChaCha_NonceIsRandom(t *testing.T) {
	ctx := context.Background()
	c := newTestChaCha(t)

	a, err := c.EncryptString(ctx, "same")
	require.NoError(t, err)
	b, err := c.EncryptString(ctx, "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	raw, err := base64.StdEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 24+len("same")+16)
}

func TestChaCha_DecryptRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	c := newTestChaCha(t)

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%"},
		{"shorter than nonce", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"tampered", func() string {
			sealed, _ := c.EncryptString(ctx, "secret")
			raw, _ := base64.StdEncoding.DecodeString(sealed)
			raw[len(raw)-1] ^= 0xff
			return base64.StdEncoding.EncodeToString(raw)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DecryptString(ctx, tt.input)
			assert.ErrorIs(t, err, core.ErrDecryptionFailed)
		})
	}
}

func TestChaCha_WrongKeyFails(t *testing.T) {
	ctx := context.Background()
	sealed, err := newTestChaCha(t).EncryptString(ctx, "secret")
	require.NoError(t, err)

	_, err = newTestChaCha(t).DecryptString(ctx, sealed)
	assert.ErrorIs(t, err, core.ErrDecryptionFailed)
}

func TestNewChaCha_InvalidKeyLength(t *testing.T) {
	_, err := NewChaCha([]byte("too short"))
	assert.ErrorIs(t, err, core.ErrInvalidKey)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "memory_encryption.key")

	key, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	again, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(key, again))
}

func TestLoadOrCreateKey_WrongLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.key")
	require.NoError(t, os.WriteFile(path, []byte("nope"), 0600))

	_, err := LoadOrCreateKey(path)
	assert.ErrorIs(t, err, core.ErrInvalidKey)
}

func TestWriteKey_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.key")
	first, _ := GenerateKey()
	second, _ := GenerateKey()

	require.NoError(t, WriteKey(path, first, false))
	assert.Error(t, WriteKey(path, second, false))

	require.NoError(t, WriteKey(path, second, true))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestNoOp(t *testing.T) {
	ctx := context.Background()
	n := NoOp{}

	assert.False(t, n.IsEnabled())
	out, err := n.EncryptString(ctx, "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
	out, err = n.DecryptString(ctx, "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestNewEncryptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory_encryption.key")

	e, err := NewEncryptor(&config.MemoryConfig{EnableEncryption: false}, path)
	require.NoError(t, err)
	assert.IsType(t, NoOp{}, e)
	assert.NoFileExists(t, path)

	e, err = NewEncryptor(&config.MemoryConfig{EnableEncryption: true}, path)
	require.NoError(t, err)
	assert.True(t, e.IsEnabled())
	assert.FileExists(t, path)
}
