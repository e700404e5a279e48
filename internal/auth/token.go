package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// SessionTokenPrefix makes session tokens recognizable in logs and headers.
const SessionTokenPrefix = "sess_"

// GenerateSessionToken returns a random session token (prefix + 32 bytes Base64URL) and its SHA256 hash as hex.
// Only the hash is stored.
func GenerateSessionToken() (token string, hashHex string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = SessionTokenPrefix + base64.RawURLEncoding.EncodeToString(b)
	return token, HashSessionToken(token), nil
}

// HashSessionToken returns SHA256 hex of the token
func HashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// maskToken keeps the prefix and a few characters for log correlation.
func maskToken(token string) string {
	if len(token) <= len(SessionTokenPrefix)+6 {
		return "****"
	}
	return token[:len(SessionTokenPrefix)+6] + "..."
}

// deviceFingerprint is a stable content hash of the device token and normalized user agent.
func deviceFingerprint(deviceToken, userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	hash := sha256.Sum256([]byte(deviceToken + "\x00" + ua))
	return hex.EncodeToString(hash[:])
}
