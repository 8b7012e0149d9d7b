package admin

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	gossh "golang.org/x/crypto/ssh"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKey(t *testing.T) gossh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := gossh.NewPublicKey(pub)
	require.NoError(t, err)
	return sshPub
}

func TestIsKeyAuthorized_MatchFound(t *testing.T) {
	key := generateTestKey(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "authorized_keys")
	require.NoError(t, os.WriteFile(path, gossh.MarshalAuthorizedKey(key), 0600))

	assert.True(t, isKeyAuthorized(key, path))
}

func TestIsKeyAuthorized_NoMatch(t *testing.T) {
	authorizedKey := generateTestKey(t)
	otherKey := generateTestKey(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "authorized_keys")
	require.NoError(t, os.WriteFile(path, gossh.MarshalAuthorizedKey(authorizedKey), 0600))

	assert.False(t, isKeyAuthorized(otherKey, path))
}

func TestIsKeyAuthorized_SkipsCommentsAndBlankLines(t *testing.T) {
	key := generateTestKey(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "authorized_keys")
	contents := "# a comment\n\n" + string(gossh.MarshalAuthorizedKey(key))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))

	assert.True(t, isKeyAuthorized(key, path))
}

func TestIsKeyAuthorized_MissingFile(t *testing.T) {
	key := generateTestKey(t)
	assert.False(t, isKeyAuthorized(key, filepath.Join(t.TempDir(), "nope")))
}

func TestFingerprint_IsStableAndPrefixed(t *testing.T) {
	key := generateTestKey(t)
	fp1 := fingerprint(key)
	fp2 := fingerprint(key)
	assert.Equal(t, fp1, fp2)
	assert.Contains(t, fp1, "MD5:")
}
