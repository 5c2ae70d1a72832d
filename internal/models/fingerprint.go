package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Fingerprint is a hex-encoded SHA-256 digest of a message's semantic content.
type Fingerprint string

// ComputeFingerprint hashes the trimmed text, the media identity token and the
// send time truncated to the minute. Messages with equal content sent within
// the same minute collide on purpose.
func ComputeFingerprint(msg *Message) Fingerprint {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(msg.TextOrEmpty())))
	h.Write([]byte{0})
	h.Write([]byte(msg.Media.Identity()))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(msg.Date.Truncate(time.Minute).Unix(), 10)))
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
