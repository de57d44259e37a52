package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, "u1"), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, "u1"), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,broken=abc%")

	assert.True(t, m.Enabled("always", "u1"))
	assert.True(t, m.On("always"))
	assert.False(t, m.Enabled("never", "u1"))
	assert.False(t, m.Enabled("broken", "u1"))

	first := m.Enabled("canary", "streamer-42")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", "streamer-42"), "rollout must be deterministic per subject")
	}

	assert.False(t, m.Enabled("canary", ""), "partial rollout requires a subject")
}

func TestDefaultsAndOverrides(t *testing.T) {
	m := NewManager("")
	assert.True(t, m.On(ViewerSimulation))
	assert.True(t, m.On(ChatSimulation))

	m = NewManager("VIEWER_SIMULATION = off")
	assert.False(t, m.On(ViewerSimulation))
	assert.True(t, m.On(ChatSimulation))
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	raw := m.Raw()
	assert.Equal(t, "on", raw["x"])
	assert.Equal(t, "20%", raw["y"])
	assert.Equal(t, "off", raw["z"])
	assert.Len(t, raw, 3+len(Defaults))

	snap := m.Snapshot("u1")
	assert.Len(t, snap, len(raw))
	assert.True(t, snap["x"])
	assert.False(t, snap["z"])

	assert.Equal(t, []string{ChatSimulation, ViewerSimulation, "x", "y", "z"}, m.Names())

	var nilManager *Manager
	assert.False(t, nilManager.On("x"))
}
