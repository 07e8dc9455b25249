package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

// Artifact kinds a download token can reference. Each maps to one file in
// the job's result directory; nothing else is signable, so a token can never
// reach outside a job's artifacts.
const (
	ArtifactJSON = "json"
	ArtifactCSV  = "csv"
	ArtifactPDF  = "pdf"
)

func artifactFile(kind string) (string, bool) {
	switch kind {
	case ArtifactJSON, ArtifactCSV, ArtifactPDF:
		return "schedule." + kind, true
	default:
		return "", false
	}
}

// SignedURLSigner creates and validates signed download tokens for result
// artifacts.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate returns a signed token for one of the job's result artifacts.
func (s *SignedURLSigner) Generate(jobID, kind string) (string, time.Time, error) {
	if !validJobID(jobID) {
		return "", time.Time{}, fmt.Errorf("invalid job id %q", jobID)
	}
	if _, ok := artifactFile(kind); !ok {
		return "", time.Time{}, fmt.Errorf("unknown artifact kind %q", kind)
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	ts := fmt.Sprintf("%d", expiresAt.Unix())
	token := strings.Join([]string{jobID, ts, kind, s.sign(jobID, ts, kind)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the job ID and the artifact's path
// relative to the result store. When allowExpired is true, the timestamp
// check is skipped (used by cleanup routines).
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	jobID, ts, kind, signature := parts[0], parts[1], parts[2], parts[3]

	if !validJobID(jobID) {
		return "", "", time.Time{}, fmt.Errorf("invalid job id in token")
	}
	file, ok := artifactFile(kind)
	if !ok {
		return "", "", time.Time{}, fmt.Errorf("unknown artifact kind in token")
	}

	expUnix, err := parseUnix(ts)
	if err != nil {
		return "", "", time.Time{}, err
	}
	expiresAt = time.Unix(expUnix, 0)

	if !hmac.Equal([]byte(s.sign(jobID, ts, kind)), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return jobID, path.Join(jobID, file), expiresAt, nil
}

func (s *SignedURLSigner) sign(jobID, ts, kind string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(jobID + "|" + ts + "|" + kind))
	return hex.EncodeToString(mac.Sum(nil))
}

// validJobID rejects anything that could steer the artifact path outside the
// job directory or break the token framing.
func validJobID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	return !strings.ContainsAny(id, "./\\")
}

func parseUnix(raw string) (int64, error) {
	var ts int64
	_, err := fmt.Sscanf(raw, "%d", &ts)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp")
	}
	return ts, nil
}
