package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traffic-rl/flowgrid/env"
)

func TestLightController_Cycle(t *testing.T) {
	// GIVEN one light with 10s green and 2s yellow
	lc := NewLightController([]string{"center0"}, LightConfig{Green: 10, Yellow: 2})
	assert.True(t, lc.Green("center0", AxisNS))
	assert.False(t, lc.Green("center0", AxisEW))

	// WHEN the green phase elapses
	for i := 0; i < 10; i++ {
		lc.Advance(1)
	}

	// THEN the north-south axis turns yellow
	assert.Equal(t, env.LightState{Direction: AxisNS, Yellow: true}, lc.State("center0"))
	assert.False(t, lc.Green("center0", AxisNS))

	// WHEN the yellow phase elapses
	lc.Advance(1)
	lc.Advance(1)

	// THEN east-west gets green and last_change restarts
	assert.Equal(t, env.LightState{Direction: AxisEW}, lc.State("center0"))
	assert.True(t, lc.Green("center0", AxisEW))

	lc.Advance(1)
	assert.Equal(t, 1.0, lc.State("center0").LastChange)
}

func TestLightController_ResetAndUnknown(t *testing.T) {
	lc := NewLightController([]string{"a"}, LightConfig{Green: 1, Yellow: 1})
	lc.Advance(1)
	lc.Advance(1)
	lc.Reset()

	assert.Equal(t, env.LightState{}, lc.State("a"))
	assert.Equal(t, env.LightState{}, lc.State("missing"))
	assert.True(t, lc.Green("missing", AxisEW))
}
