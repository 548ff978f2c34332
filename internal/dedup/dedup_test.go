package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitOnce(t *testing.T) {
	d := New(time.Hour)

	require.True(t, d.Admit("sig-1"))
	assert.False(t, d.Admit("sig-1"))
	assert.False(t, d.Admit("sig-1"))
	assert.True(t, d.Admit("sig-2"))
	assert.Equal(t, 2, d.Len())
}

func TestAdmitRejectsEmptyID(t *testing.T) {
	d := New(time.Hour)
	assert.False(t, d.Admit(""))
}

func TestForgetAllowsReadmission(t *testing.T) {
	d := New(time.Hour)

	require.True(t, d.Admit("sig-1"))
	d.Forget("sig-1")
	assert.True(t, d.Admit("sig-1"))
}

func TestEvictionAfterWindow(t *testing.T) {
	d := New(time.Hour)
	clock := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	require.True(t, d.Admit("sig-1"))
	assert.False(t, d.Admit("sig-1"))

	// Within the window the entry survives sweeps.
	clock = clock.Add(30 * time.Minute)
	assert.False(t, d.Admit("sig-1"))

	// Beyond the window the id is evicted and admitted again.
	clock = clock.Add(2 * time.Hour)
	assert.True(t, d.Admit("sig-1"))
	assert.Equal(t, 1, d.Len())
}

func TestDefaultWindow(t *testing.T) {
	d := New(0)
	assert.Equal(t, DefaultWindow, d.window)
}
