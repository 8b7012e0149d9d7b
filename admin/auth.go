package admin

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/ssh"
	gossh "golang.org/x/crypto/ssh"

	"swiftkernel/logging"
)

// authorizedKeysPath returns ~/.ssh/authorized_keys, the same file a normal
// sshd trusts, so the admin console reuses whatever keys a user has already
// granted shell access to.
func authorizedKeysPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ssh", "authorized_keys"), nil
}

// isKeyAuthorized reports whether clientKey appears in the authorized_keys
// file at path, skipping blank lines and comments.
func isKeyAuthorized(clientKey ssh.PublicKey, path string) bool {
	file, err := os.Open(path)
	if err != nil {
		logging.Logger.Warn("failed to open authorized_keys", "error", err, "path", path)
		return false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		authorizedKey, _, _, _, err := gossh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			continue
		}
		if bytes.Equal(clientKey.Marshal(), authorizedKey.Marshal()) {
			return true
		}
	}
	return false
}

// fingerprint renders an MD5 key fingerprint for audit logging.
func fingerprint(key ssh.PublicKey) string {
	sum := md5.Sum(key.Marshal())
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return "MD5:" + strings.Join(parts, ":")
}

// publicKeyHandler is the wish.WithPublicKeyAuth callback: accept a
// connection only if its key is present in authorized_keys.
func publicKeyHandler(ctx ssh.Context, key ssh.PublicKey) bool {
	fp := fingerprint(key)
	path, err := authorizedKeysPath()
	if err != nil {
		logging.Logger.Error("admin console auth failed", "error", err, "user", ctx.User())
		return false
	}
	ok := isKeyAuthorized(key, path)
	if ok {
		logging.Logger.Info("admin console key authenticated", "user", ctx.User(), "fingerprint", fp)
	} else {
		logging.Logger.Warn("admin console rejected unauthorized key", "user", ctx.User(), "fingerprint", fp)
	}
	return ok
}
