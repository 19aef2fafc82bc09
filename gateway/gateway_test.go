package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/plotstream/config"
	"github.com/c360/plotstream/datasource"
	"github.com/c360/plotstream/metric"
	"github.com/c360/plotstream/param"
	"github.com/c360/plotstream/render"
)

func testGateway(t *testing.T, mutate func(*config.Gateway), opts ...Option) *Gateway {
	t.Helper()

	frame, err := datasource.NewFrame(
		map[string][]float64{
			datasource.ColPickupX:  {0, 1, 2, 3},
			datasource.ColPickupY:  {0, 1, 2, 3},
			datasource.ColDropoffX: {5, 6, 7, 8},
			datasource.ColDropoffY: {5, 6, 7, 8},
		},
		map[string][]int64{
			datasource.ColPassengers: {1, 2, 3, 4},
		},
	)
	require.NoError(t, err)
	source := datasource.NewMemorySource(frame)

	schema, err := render.DefaultSchema()
	require.NoError(t, err)

	cfg := config.Gateway{Addr: ":0", SendBuffer: 16, WriteTimeout: 2 * time.Second}
	if mutate != nil {
		mutate(&cfg)
	}

	g, err := New(cfg, config.Render{Width: 64, Height: 64}, source, schema, opts...)
	require.NoError(t, err)
	return g
}

func dial(t *testing.T, g *Gateway) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(g.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readMessage returns the next frame; text frames decode into a generic map
func readMessage(t *testing.T, conn *websocket.Conn) (map[string]any, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	if kind == websocket.BinaryMessage {
		return nil, raw
	}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return decoded, nil
}

// awaitType reads frames until a text message of the wanted type arrives
func awaitType(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	for i := 0; i < 32; i++ {
		msg, _ := readMessage(t, conn)
		if msg != nil && msg["type"] == wantType {
			return msg
		}
	}
	t.Fatalf("no %q message received", wantType)
	return nil
}

func TestSessionHelloAndInitialArtifact(t *testing.T) {
	g := testGateway(t, nil)
	conn := dial(t, g)

	hello := awaitType(t, conn, MsgHello)
	assert.NotEmpty(t, hello["session"])
	specs, ok := hello["specs"].([]any)
	require.True(t, ok)
	assert.Len(t, specs, 5)

	art := awaitType(t, conn, MsgArtifact)
	assert.NotEmpty(t, art["id"])
	assert.Equal(t, float64(4), art["points"])

	// the PNG follows the metadata frame
	msg, png := readMessage(t, conn)
	require.Nil(t, msg)
	assert.Equal(t, "\x89PNG", string(png[:4]))
}

func TestSetTriggersNewArtifact(t *testing.T) {
	g := testGateway(t, nil)
	conn := dial(t, g)
	awaitType(t, conn, MsgArtifact)

	require.NoError(t, conn.WriteJSON(ControlMessage{
		Type: MsgSet, Name: render.ParamPassengers, Value: []any{2.0, 3.0},
	}))

	art := awaitType(t, conn, MsgArtifact)
	assert.Equal(t, float64(2), art["points"])
}

func TestViewportTriggersCroppedArtifact(t *testing.T) {
	g := testGateway(t, nil)
	conn := dial(t, g)
	awaitType(t, conn, MsgArtifact)

	require.NoError(t, conn.WriteJSON(ControlMessage{
		Type:   MsgViewport,
		Extent: &datasource.Extent{MinX: 0.5, MaxX: 2.5, MinY: 0.5, MaxY: 2.5},
	}))

	art := awaitType(t, conn, MsgArtifact)
	assert.Equal(t, float64(2), art["points"])

	extent, ok := art["extent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.5, extent["min_x"])
}

func TestInvalidValueRejectedWithCode(t *testing.T) {
	g := testGateway(t, nil)
	conn := dial(t, g)
	awaitType(t, conn, MsgArtifact)

	require.NoError(t, conn.WriteJSON(ControlMessage{
		Type: MsgSet, Name: render.ParamPassengers, Value: []any{-1.0, 5.0},
	}))

	errMsg := awaitType(t, conn, MsgError)
	assert.Equal(t, render.ParamPassengers, errMsg["parameter"])
	assert.Equal(t, param.CodeBounds, errMsg["code"])
}

func TestMalformedControlRejectedBySchema(t *testing.T) {
	g := testGateway(t, nil)
	conn := dial(t, g)
	awaitType(t, conn, MsgArtifact)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"viewport"}`)))
	errMsg := awaitType(t, conn, MsgError)
	assert.Contains(t, errMsg["message"], "control message rejected")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"detonate"}`)))
	errMsg = awaitType(t, conn, MsgError)
	assert.Contains(t, errMsg["message"], "control message rejected")
}

func TestViewportRateLimited(t *testing.T) {
	g := testGateway(t, func(cfg *config.Gateway) {
		cfg.ViewportRate = 1
		cfg.ViewportBurst = 1
	})
	conn := dial(t, g)
	awaitType(t, conn, MsgArtifact)

	ext := &datasource.Extent{MinX: 0, MaxX: 1, MinY: 0, MaxY: 1}
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: MsgViewport, Extent: ext}))
	require.NoError(t, conn.WriteJSON(ControlMessage{Type: MsgViewport, Extent: ext}))

	errMsg := awaitType(t, conn, MsgError)
	assert.Contains(t, errMsg["message"], "rate")
}

func TestSpecsEndpoint(t *testing.T) {
	g := testGateway(t, nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/specs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msg SpecsMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Equal(t, MsgSpecs, msg.Type)
	require.Len(t, msg.Specs, 5)
	assert.Equal(t, render.ParamMode, msg.Specs[0].Name)
}

func TestParamChangesForwardedToObserver(t *testing.T) {
	type forwarded struct {
		session uuid.UUID
		change  param.Change
	}
	got := make(chan forwarded, 4)

	g := testGateway(t, nil, WithParamObserver(func(id uuid.UUID, ch param.Change) {
		got <- forwarded{session: id, change: ch}
	}))
	conn := dial(t, g)
	awaitType(t, conn, MsgArtifact)

	require.NoError(t, conn.WriteJSON(ControlMessage{
		Type: MsgSet, Name: render.ParamAlpha, Value: 128,
	}))

	select {
	case f := <-got:
		assert.NotEqual(t, uuid.Nil, f.session)
		assert.Equal(t, render.ParamAlpha, f.change.Name)
		assert.Equal(t, 128, f.change.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("no parameter change forwarded")
	}
}

func TestRejectedChangeNotForwarded(t *testing.T) {
	got := make(chan param.Change, 4)

	g := testGateway(t, nil, WithParamObserver(func(_ uuid.UUID, ch param.Change) {
		got <- ch
	}))
	conn := dial(t, g)
	awaitType(t, conn, MsgArtifact)

	require.NoError(t, conn.WriteJSON(ControlMessage{
		Type: MsgSet, Name: render.ParamAlpha, Value: 999,
	}))
	awaitType(t, conn, MsgError)

	select {
	case ch := <-got:
		t.Fatalf("rejected assignment forwarded: %+v", ch)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSessionExplorerMetricsRecorded(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	g := testGateway(t, nil, WithMetrics(registry))
	conn := dial(t, g)
	awaitType(t, conn, MsgArtifact)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	var explorerLabel string
	foundRebuilds, foundDuration := false, false
	for _, f := range families {
		switch f.GetName() {
		case "plotstream_explorer_rebuilds_total":
			foundRebuilds = true
			require.NotEmpty(t, f.GetMetric())
			for _, l := range f.GetMetric()[0].GetLabel() {
				if l.GetName() == "explorer" {
					explorerLabel = l.GetValue()
				}
			}
		case "plotstream_explorer_rebuild_duration_seconds":
			foundDuration = true
		}
	}
	require.True(t, foundRebuilds, "rebuild counter not gathered")
	assert.True(t, foundDuration, "rebuild duration histogram not gathered")
	assert.True(t, strings.HasPrefix(explorerLabel, "session-"), explorerLabel)
}

func TestShutdownClosesSessions(t *testing.T) {
	g := testGateway(t, nil)
	conn := dial(t, g)
	awaitType(t, conn, MsgArtifact)
	require.Equal(t, 1, g.SessionCount())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Shutdown(ctx))

	assert.Eventually(t, func() bool {
		return g.SessionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	for i := 0; i < 8; i++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
	t.Fatal("connection still open after shutdown")
}

func TestControlSchemaValidator(t *testing.T) {
	v, err := newValidator()
	require.NoError(t, err)

	valid := [][]byte{
		[]byte(`{"type":"set","name":"alpha","value":128}`),
		[]byte(`{"type":"reset","name":"alpha"}`),
		[]byte(`{"type":"viewport","extent":{"min_x":0,"max_x":1,"min_y":0,"max_y":1}}`),
		[]byte(`{"type":"clear_viewport"}`),
		[]byte(`{"type":"specs"}`),
	}
	for _, raw := range valid {
		assert.NoError(t, v.validate(raw), string(raw))
	}

	invalid := [][]byte{
		[]byte(`{}`),
		[]byte(`{"type":"set","name":"alpha"}`),
		[]byte(`{"type":"viewport","extent":{"min_x":0}}`),
		[]byte(`{"type":"set","name":"alpha","value":1,"extra":true}`),
		[]byte(`not json`),
	}
	for _, raw := range invalid {
		assert.Error(t, v.validate(raw), string(raw))
	}
}
