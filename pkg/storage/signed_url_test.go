package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("job-1", ArtifactCSV)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	jobID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "job-1/schedule.csv", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Millisecond*10)
	token, _, err := signer.Generate("job-1", ArtifactCSV)
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	jobID, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "job-1/schedule.csv", path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("job-1", ArtifactCSV)
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token+"x", false)
	require.Error(t, err)

	other := NewSignedURLSigner("different-secret", time.Hour)
	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLSignerRejectsUnknownArtifact(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	_, _, err := signer.Generate("job-1", "exe")
	require.Error(t, err)
}

func TestSignedURLSignerRejectsTraversalJobID(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	for _, id := range []string{"../job-1", "job/1", "job.1", ""} {
		_, _, err := signer.Generate(id, ArtifactCSV)
		require.Error(t, err, "job id %q", id)
	}
}
