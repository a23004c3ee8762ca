package feeds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, expires, err := signer.Generate("cal-1", "my-calendar.ics")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	calendarID, filename, _, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "cal-1", calendarID)
	assert.Equal(t, "my-calendar.ics", filename)
}

func TestSignerRejectsTampering(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, _, err := signer.Generate("cal-1", "my-calendar.ics")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token + "x")
	assert.Error(t, err)

	other := NewSigner("other-secret", time.Hour)
	_, _, _, err = other.Parse(token)
	assert.Error(t, err)
}

func TestSignerRejectsExpired(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	signer.ttl = -time.Minute
	token, _, err := signer.Generate("cal-1", "my-calendar.ics")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token)
	assert.Error(t, err)
}
