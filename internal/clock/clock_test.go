package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedAdvance(t *testing.T) {
	start := time.Date(2023, 3, 3, 12, 0, 0, 0, time.UTC)
	c := NewFixed(start)

	require.Equal(t, start, c.Now())

	c.Advance(time.Hour)
	require.Equal(t, start.Add(time.Hour), c.Now())

	c.Set(start)
	require.Equal(t, start, c.Now())
}

func TestSystemIsUTC(t *testing.T) {
	require.Equal(t, time.UTC, System{}.Now().Location())
}
