package remote

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffic-rl/flowgrid/env"
	"github.com/traffic-rl/flowgrid/internal/testutil"
	"github.com/traffic-rl/flowgrid/sim"
)

func gridExperiment(t *testing.T) *sim.Experiment {
	t.Helper()
	x, err := sim.ParseExperiment(testutil.Fixture(t, "grid.yaml"))
	require.NoError(t, err)
	return x
}

func startServer(t *testing.T, x *sim.Experiment, codec string) string {
	t.Helper()
	srv, err := NewServer(func() (*env.MultiEnv, error) {
		e, _, err := x.Build()
		return e, err
	}, codec)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func zeroActions(roster []string) map[string][]float64 {
	out := make(map[string][]float64, len(roster))
	for _, id := range roster {
		out[id] = []float64{0}
	}
	return out
}

// A remote episode must match a local one built from the same experiment.
func TestClient_MatchesLocalEnvironment(t *testing.T) {
	for _, codec := range []string{"json", "msgpack"} {
		t.Run(codec, func(t *testing.T) {
			// GIVEN a server and a local environment built from the grid fixture
			x := gridExperiment(t)
			url := startServer(t, x, codec)
			local, _, err := x.Build()
			require.NoError(t, err)

			c, err := Dial(context.Background(), url, codec)
			require.NoError(t, err)
			defer c.Close()

			// WHEN querying spaces
			obsSpace, actSpace, err := c.Spaces()
			require.NoError(t, err)

			// THEN they match the local environment
			assert.Equal(t, local.ObservationSpace(), obsSpace)
			assert.Equal(t, local.ActionSpace(), actSpace)

			// WHEN resetting both
			remoteObs, err := c.Reset()
			require.NoError(t, err)
			localObs, err := local.Reset()
			require.NoError(t, err)

			// THEN initial observations are identical
			assert.Equal(t, localObs, remoteObs)

			// WHEN stepping both with the same actions
			actions := zeroActions(local.Population().Roster())
			for step := 1; step <= 10; step++ {
				got, err := c.Step(actions)
				require.NoError(t, err)
				want, err := local.Step(actions)
				require.NoError(t, err)

				// THEN every agent-keyed map agrees
				assert.Equal(t, want.Observations, got.Observations, "step %d", step)
				assert.Equal(t, want.Rewards, got.Rewards, "step %d", step)
				assert.Equal(t, want.Dones, got.Dones, "step %d", step)
				assert.Len(t, got.Infos, len(want.Infos), "step %d", step)
			}
		})
	}
}

func TestClient_StepBeforeReset(t *testing.T) {
	// GIVEN a fresh connection
	url := startServer(t, gridExperiment(t), "json")
	c, err := Dial(context.Background(), url, "json")
	require.NoError(t, err)
	defer c.Close()

	// WHEN stepping without a reset
	_, err = c.Step(nil)

	// THEN an error frame is returned and the session stays usable
	require.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), ErrNotReset.Error())
	_, err = c.Reset()
	assert.NoError(t, err)
}

func TestClient_InvalidActionKeepsSession(t *testing.T) {
	// GIVEN a reset session
	x := gridExperiment(t)
	url := startServer(t, x, "msgpack")
	local, _, err := x.Build()
	require.NoError(t, err)
	c, err := Dial(context.Background(), url, "msgpack")
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Reset()
	require.NoError(t, err)

	// WHEN sending an action of the wrong dimension
	roster := local.Population().Roster()
	_, err = c.Step(map[string][]float64{roster[0]: {0.1, 0.2}})

	// THEN the step fails remotely and the next valid step succeeds
	require.ErrorIs(t, err, ErrRemote)
	res, err := c.Step(zeroActions(roster))
	require.NoError(t, err)
	assert.Contains(t, res.Dones, env.DoneAll)
}

func TestServer_RejectsFramesFailingSchema(t *testing.T) {
	url := startServer(t, gridExperiment(t), "json")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	tests := []struct {
		name  string
		frame string
	}{
		{"unknown type", `{"type":"explode"}`},
		{"missing type", `{"actions":{}}`},
		{"extra field", `{"type":"reset","seed":3}`},
		{"non-numeric action", `{"type":"step","actions":{"rl_0":["fast"]}}`},
		{"not json", `reset`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// WHEN sending a malformed frame
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)))
			_, msg, err := conn.ReadMessage()
			require.NoError(t, err)

			// THEN an error frame comes back on the same connection
			var resp Response
			require.NoError(t, json.Unmarshal(msg, &resp))
			assert.Equal(t, TypeError, resp.Type)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestNewCodec(t *testing.T) {
	assert.Equal(t, "json", NewCodec("").Name())
	assert.Equal(t, websocket.BinaryMessage, NewCodec("msgpack").MessageType())
	assert.Panics(t, func() { NewCodec("protobuf") })
}
