package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/retarget/internal/config"
	"github.com/ayusman/retarget/internal/pose"
	"github.com/ayusman/retarget/internal/session"
	"github.com/ayusman/retarget/internal/source"
	"github.com/ayusman/retarget/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg := session.NewRegistry(session.Options{
		Store:        s,
		Retarget:     config.DefaultConfig().Retarget,
		RecordFrames: true,
	})
	t.Cleanup(reg.Close)

	ts := httptest.NewServer(New(Config{Store: s, Registry: reg}))
	t.Cleanup(ts.Close)
	return ts, reg
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func createSession(t *testing.T, baseURL string) string {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/rigs", map[string]interface{}{
		"name":   "avatar",
		"layout": "arms-down",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var rg struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rg))
	resp.Body.Close()

	resp = postJSON(t, baseURL+"/api/sessions", map[string]interface{}{"rig_id": rg.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sess struct {
		ID    string `json:"id"`
		RigID string `json:"rig_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	resp.Body.Close()
	require.Equal(t, rg.ID, sess.RigID)
	return sess.ID
}

func framePayload(f pose.Frame) map[string]interface{} {
	return map[string]interface{}{"samples": f.Samples}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_SessionWorkflow(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createSession(t, ts.URL)

	// Push two frames.
	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/frames", framePayload(source.UprightFrame()))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Sequence  int64                  `json:"sequence"`
			Rotations map[string]interface{} `json:"rotations"`
			Joints    map[string][3]float64  `json:"joints"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		resp.Body.Close()

		assert.Equal(t, int64(i+1), out.Sequence)
		assert.NotEmpty(t, out.Rotations)
		assert.Contains(t, out.Joints, pose.LeftWrist)
	}

	// Recorded frames.
	resp, err := http.Get(ts.URL + "/api/sessions/" + id + "/frames?limit=10")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var frames struct {
		Frames []struct {
			Sequence int64 `json:"sequence"`
		} `json:"frames"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&frames))
	resp.Body.Close()
	require.Len(t, frames.Frames, 2)
	assert.Equal(t, int64(2), frames.Frames[1].Sequence)

	// Toggle flip.
	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/sessions/"+id, strings.NewReader(`{"flip": true}`))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var toggled struct {
		Flip bool `json:"flip"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&toggled))
	resp.Body.Close()
	assert.True(t, toggled.Flip)

	// Delete.
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/sessions/" + id)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_InvalidFrame(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createSession(t, ts.URL)

	resp, err := http.Post(ts.URL+"/api/sessions/"+id+"/frames", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/sessions/"+id+"/frames", map[string]interface{}{"array": []float64{1, 2}})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, score := range []float64{-0.1, 1.5} {
		resp = postJSON(t, ts.URL+"/api/sessions/"+id+"/frames", map[string]interface{}{
			"samples": []map[string]interface{}{
				{"name": pose.LeftWrist, "score": score, "position": map[string]float64{"x": 0, "y": 1, "z": 0}},
			},
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "score %v", score)
	}

	resp = postJSON(t, ts.URL+"/api/sessions/"+id+"/frames", map[string]interface{}{
		"samples": []map[string]interface{}{{"score": 0.5}},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_RotationsWebSocket(t *testing.T) {
	ts, reg := newTestServer(t)
	id := createSession(t, ts.URL)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	l, err := reg.Get(id)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return l.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/frames", framePayload(source.UprightFrame()))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Sequence  int64                  `json:"sequence"`
		Timestamp int64                  `json:"timestamp"`
		Rotations map[string]interface{} `json:"rotations"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, int64(1), msg.Sequence)
	assert.NotZero(t, msg.Timestamp)
	assert.NotEmpty(t, msg.Rotations)
}

func TestAPI_WebSocketUnknownSession(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_DebugSnapshot(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createSession(t, ts.URL)

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/frames", framePayload(source.UprightFrame()))
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/sessions/" + id + "/debug.png")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "abc", sessionID("/api/sessions/abc/ws", "ws"))
	assert.Equal(t, "", sessionID("/api/sessions//ws", "ws"))
	assert.Equal(t, "", sessionID("/api/sessions/a/b/ws", "ws"))
}
