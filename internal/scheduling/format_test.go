package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendlyTime(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	// 2025-09-05T08:00:00Z is 10:00 in Madrid (CEST) on a Friday.
	ts := time.Date(2025, 9, 5, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "viernes 5 de septiembre a las 10:00", FriendlyTime(ts, loc))
}

func TestFriendlyDate(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	ts := time.Date(2025, 12, 24, 23, 30, 0, 0, time.UTC)
	// Midnight rollover: 23:30Z on the 24th is already the 25th in Madrid.
	assert.Equal(t, "jueves 25 de diciembre", FriendlyDate(ts, loc))
}
