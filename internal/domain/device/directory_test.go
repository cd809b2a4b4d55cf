package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDirectory_DedupAndOrder verifies first-seen order survives repeat sightings.
func TestDirectory_DedupAndOrder(t *testing.T) {
	t.Parallel()

	d := NewDirectory()

	require.True(t, d.OnDiscovered(Handle{ID: "b", Name: "Halo B", RSSI: -70}))
	require.True(t, d.OnDiscovered(Handle{ID: "a", Name: "Halo A", RSSI: -40}))
	require.False(t, d.OnDiscovered(Handle{ID: "b", Name: "Halo B renamed", RSSI: -30}))
	require.False(t, d.OnDiscovered(Handle{}))

	list := d.List()
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].ID)
	require.Equal(t, "Halo B", list[0].Name)
	require.Equal(t, int16(-70), list[0].RSSI)
	require.Equal(t, "a", list[1].ID)

	// List hands out a copy.
	list[0].Name = "mutated"
	got, ok := d.Lookup("b")
	require.True(t, ok)
	require.Equal(t, "Halo B", got.Name)

	_, ok = d.Lookup("missing")
	require.False(t, ok)
}

// TestDirectory_Reset drops devices from the previous scan.
func TestDirectory_Reset(t *testing.T) {
	t.Parallel()

	d := NewDirectory()
	d.OnDiscovered(Handle{ID: "a", Name: "Halo"})
	require.Equal(t, 1, d.Len())

	d.Reset()
	require.Zero(t, d.Len())
	require.Empty(t, d.List())

	_, ok := d.Lookup("a")
	require.False(t, ok)

	require.True(t, d.OnDiscovered(Handle{ID: "a", Name: "Halo"}))
}

// TestAdmissible filters unnamed and non-connectable advertisements.
func TestAdmissible(t *testing.T) {
	t.Parallel()

	require.True(t, Admissible("Halo", true))
	require.False(t, Admissible("Halo", false))
	require.False(t, Admissible("", true))
	require.False(t, Admissible("   ", true))
	require.False(t, Admissible(PlaceholderName, true))
}

// TestHandleString renders the empty handle distinctly.
func TestHandleString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "<none>", Handle{}.String())
	require.Equal(t, "Halo (aa:bb)", Handle{ID: "aa:bb", Name: "Halo"}.String())
}
