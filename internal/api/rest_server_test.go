package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/annel0/voxel-detach/internal/detached"
	"github.com/annel0/voxel-detach/internal/storage"
	"github.com/annel0/voxel-detach/internal/vec"
	"github.com/annel0/voxel-detach/internal/voxel"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t     *testing.T
	rs    *RestServer
	group *detached.Group
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	g, err := detached.NewGroup(detached.Options{ChunkSize: 4, CubeSize: 1})
	require.NoError(t, err)
	ms, err := storage.NewMatrixStorage("", true)
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })

	rs := NewRestServer(Config{Group: g, Storage: ms, Registry: prometheus.NewRegistry()})
	return &testServer{t: t, rs: rs, group: g}
}

func (ts *testServer) do(method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.rs.Handler().ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func (ts *testServer) singleVoxelMatrix(at vec.Vec3) detached.MatrixID {
	ts.t.Helper()
	id, err := ts.group.Create(vec.Vec3{}, vec.Vec3{X: 4, Y: 4, Z: 4}, func(x, y, z int) voxel.Value {
		if x == at.X && y == at.Y && z == at.Z {
			return 1
		}
		return voxel.Empty
	})
	require.NoError(ts.t, err)
	return id
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w, _ := ts.do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestMatrices_CRUD(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do("POST", "/api/matrices", CreateMatrixRequest{
		High:    [3]int{8, 4, 4},
		Density: DensityRequest{Kind: "solid", Material: 2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created MatrixView
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, []string{"0|0|0", "1|0|0"}, created.Chunks)
	assert.Equal(t, 128, created.Voxels)

	w, env = ts.do("GET", "/api/matrices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []MatrixView
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	w, _ = ts.do("GET", "/api/matrices/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do("GET", "/api/matrices/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do("DELETE", "/api/matrices/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = ts.do("DELETE", "/api/matrices/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatrices_CreateValidation(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do("POST", "/api/matrices", CreateMatrixRequest{High: [3]int{4, 4, 4}, Density: DensityRequest{Kind: "fractal"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do("POST", "/api/matrices", CreateMatrixRequest{Low: [3]int{4, 4, 4}, High: [3]int{1, 1, 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "пустой бокс")

	w, env := ts.do("POST", "/api/matrices", CreateMatrixRequest{High: [3]int{4096, 4096, 4096}, Density: DensityRequest{Kind: "solid"}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "бокс больше предела объёма")
	assert.False(t, env.Success)
	assert.Equal(t, 0, ts.group.Len(), "матрица не создана")
}

func TestResolveAndTransform(t *testing.T) {
	ts := newTestServer(t)
	ts.singleVoxelMatrix(vec.Vec3{})

	w, env := ts.do("POST", "/api/resolve", PointRequest{Point: [3]float64{0.5, 0.5, 0.5}})
	require.Equal(t, http.StatusOK, w.Code)
	var rv ResolveView
	require.NoError(t, json.Unmarshal(env.Data, &rv))
	assert.True(t, rv.Found)
	assert.Equal(t, "0|0|0", rv.Chunk)
	assert.Equal(t, 0, rv.Voxel)
	assert.Equal(t, uint16(1), rv.Value)

	w, _ = ts.do("PUT", "/api/matrices/1/transform", TransformRequest{Translation: [3]float64{10, 0, 0}})
	require.Equal(t, http.StatusOK, w.Code)

	_, env = ts.do("POST", "/api/resolve", PointRequest{Point: [3]float64{0.5, 0.5, 0.5}})
	require.NoError(t, json.Unmarshal(env.Data, &rv))
	assert.False(t, rv.Found)

	_, env = ts.do("POST", "/api/resolve", PointRequest{Point: [3]float64{10.5, 0.5, 0.5}})
	rv = ResolveView{}
	require.NoError(t, json.Unmarshal(env.Data, &rv))
	assert.True(t, rv.Found)

	w, _ = ts.do("PUT", "/api/matrices/9/transform", TransformRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlace(t *testing.T) {
	ts := newTestServer(t)
	ts.singleVoxelMatrix(vec.Vec3{X: 1, Y: 1, Z: 1})

	w, env := ts.do("POST", "/api/place", PlaceRequest{
		Origin:    [3]float64{1.5, 1.5, 10},
		Direction: [3]float64{0, 0, -1},
		Value:     3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var pv PlacementView
	require.NoError(t, json.Unmarshal(env.Data, &pv))
	assert.Equal(t, voxel.LinearIndex(vec.Vec3{X: 1, Y: 1, Z: 2}, 4), pv.Voxel)

	w, _ = ts.do("POST", "/api/place", PlaceRequest{Origin: [3]float64{1.5, 1.5, 10}, Value: 3})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "нулевое направление")

	w, _ = ts.do("POST", "/api/place", PlaceRequest{Origin: [3]float64{50, 50, 50}, Direction: [3]float64{0, 1, 0}, Value: 3})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "луч мимо")

	w, _ = ts.do("POST", "/api/place", PlaceRequest{Direction: [3]float64{0, 1, 0}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "value обязателен")
}

func TestPlace_BlockedByPlayer(t *testing.T) {
	ts := newTestServer(t)
	ts.singleVoxelMatrix(vec.Vec3{X: 1, Y: 0, Z: 1})

	player := [3]float64{1.5, 1.7, 1.5}
	w, _ := ts.do("POST", "/api/place", PlaceRequest{
		Origin:    [3]float64{1.5, 10, 1.5},
		Direction: [3]float64{0, -1, 0},
		Value:     3,
		Player:    &player,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCollisions(t *testing.T) {
	ts := newTestServer(t)
	ts.singleVoxelMatrix(vec.Vec3{X: 1, Y: 0, Z: 1})

	w, env := ts.do("POST", "/api/collisions", PointRequest{Point: [3]float64{1.5, 1.7, 1.5}})
	require.Equal(t, http.StatusOK, w.Code)
	var cv CollisionsView
	require.NoError(t, json.Unmarshal(env.Data, &cv))
	assert.Equal(t, 5, cv.Bottom)
	assert.False(t, cv.Freedom.YNeg)
	assert.True(t, cv.Freedom.YPos)
}

func TestSnapshots(t *testing.T) {
	ts := newTestServer(t)
	ts.singleVoxelMatrix(vec.Vec3{})

	w, _ := ts.do("POST", "/api/snapshots/base", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := ts.do("GET", "/api/snapshots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []storage.SnapshotInfo
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "base", list[0].Name)

	w, _ = ts.do("DELETE", "/api/matrices/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do("POST", "/api/snapshots/base/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ts.group.Len())

	w, _ = ts.do("POST", "/api/snapshots/missing/restore", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = ts.do("DELETE", "/api/snapshots/base", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSnapshots_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g, err := detached.NewGroup(detached.Options{})
	require.NoError(t, err)
	rs := NewRestServer(Config{Group: g, Registry: prometheus.NewRegistry()})

	w := httptest.NewRecorder()
	rs.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/snapshots", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatsAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.singleVoxelMatrix(vec.Vec3{})

	w, env := ts.do("GET", "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"matrices":1`)

	w, _ = ts.do("GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "detach_api_http_request_duration_seconds")
}
