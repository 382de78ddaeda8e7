package endpoint_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/fluxgrid"
	"github.com/viant/fluxgrid/model/task"
	"github.com/viant/fluxgrid/service/endpoint"
)

func newServer(t *testing.T) *httptest.Server {
	logger, _ := test.NewNullLogger()
	cfg := fluxgrid.DefaultConfig()
	cfg.Liveness.Timeout = 0
	srv, err := fluxgrid.New(fluxgrid.WithConfig(cfg), fluxgrid.WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	ts := httptest.NewServer(endpoint.New(srv,
		endpoint.WithLogger(logger),
		endpoint.WithMetricsHandler(srv.Metrics().Handler()),
	))
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path string, body, target interface{}) int {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	if target != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	}
	return resp.StatusCode
}

func get(t *testing.T, ts *httptest.Server, path string) (int, []byte) {
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestServer_Pipeline(t *testing.T) {
	ts := newServer(t)

	for _, id := range []string{"worker0", "worker1"} {
		reg := &endpoint.RegisterResponse{}
		assert.Equal(t, http.StatusOK, post(t, ts, "/register", &endpoint.RegisterRequest{WorkerID: id, Cores: 2}, reg))
		assert.True(t, reg.Success)
		assert.Equal(t, id, reg.WorkerID)
	}
	assert.Equal(t, http.StatusConflict, post(t, ts, "/register", &endpoint.RegisterRequest{WorkerID: "worker0", Cores: 2}, nil))

	alloc := &endpoint.AllocationResponse{}
	status := post(t, ts, "/allocate", &endpoint.AllocateRequest{ClientID: "client1", NewTasks: []task.Vertex{
		{Program: "program0", Contacts: []int{1}},
		{Program: "program1", Contacts: []int{2}},
		{Program: "program2", Contacts: []int{}},
	}}, alloc)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"client1~0~worker0", "client1~1~worker0", "client1~2~worker1"}, alloc.TaskIDs)

	beat := &endpoint.HeartbeatResponse{}
	require.Equal(t, http.StatusOK, post(t, ts, "/heartbeat", &endpoint.HeartbeatRequest{WorkerID: "worker1", ActiveTasks: []string{}}, beat))
	expected := []*endpoint.Task{{
		TaskID:   "client1~2~worker1",
		ClientID: "client1",
		VertexID: 2,
		WorkerID: "worker1",
		Program:  "program2",
		Contacts: []string{},
	}}
	assert.Equal(t, expected, beat.NewTasks)

	// the heartbeat body keeps the flags the workers rely on
	raw := map[string][]map[string]interface{}{}
	post(t, ts, "/heartbeat", &endpoint.HeartbeatRequest{WorkerID: "worker0", ActiveTasks: []string{}}, &raw)
	require.Len(t, raw["new_tasks"], 2)
	assert.Equal(t, false, raw["new_tasks"][0]["update"])
	assert.Equal(t, false, raw["new_tasks"][0]["cancel"])
	assert.Equal(t, []interface{}{"client1~1~worker0"}, raw["new_tasks"][0]["contacts"])

	code, body := get(t, ts, "/allocation?client_id=client1")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"task_ids":["client1~0~worker0","client1~1~worker0","client1~2~worker1"]}`, string(body))

	code, body = get(t, ts, "/pointers?client_id=client1")
	assert.Equal(t, http.StatusOK, code)
	pointers := &endpoint.PointersResponse{}
	require.NoError(t, json.Unmarshal(body, pointers))
	require.Len(t, pointers.TaskPointers, 3)
	assert.Equal(t, "worker1", pointers.TaskPointers[2].WorkerID)

	resp, err := http.Get(ts.URL + "/program?task_id=client1~1~worker0")
	require.NoError(t, err)
	program, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "text/javascript", resp.Header.Get("Content-Type"))
	assert.Equal(t, "program1", string(program))

	code, body = get(t, ts, "/")
	assert.Equal(t, http.StatusOK, code)
	state := &fluxgrid.State{}
	require.NoError(t, json.Unmarshal(body, state))
	assert.Len(t, state.Workers, 2)
	assert.Len(t, state.Clients["client1"], 3)
}

func TestServer_AllocateInsufficient(t *testing.T) {
	ts := newServer(t)
	post(t, ts, "/register", &endpoint.RegisterRequest{WorkerID: "worker0", Cores: 1}, nil)

	alloc := &endpoint.AllocationResponse{}
	status := post(t, ts, "/allocate", &endpoint.AllocateRequest{ClientID: "client1", NewTasks: []task.Vertex{
		{Program: "a"}, {Program: "b"},
	}}, alloc)
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, alloc.TaskIDs)
	assert.Empty(t, alloc.TaskIDs)

	code, _ := get(t, ts, "/allocation?client_id=client1")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_Errors(t *testing.T) {
	ts := newServer(t)

	testCases := []struct {
		description string
		path        string
		body        interface{}
		status      int
	}{
		{description: "non-positive cores", path: "/register", body: &endpoint.RegisterRequest{WorkerID: "w", Cores: 0}, status: http.StatusBadRequest},
		{description: "unknown worker heartbeat", path: "/heartbeat", body: &endpoint.HeartbeatRequest{WorkerID: "missing"}, status: http.StatusNotFound},
		{description: "malformed body", path: "/register", body: "not an object", status: http.StatusBadRequest},
		{description: "invalid contact", path: "/allocate", body: &endpoint.AllocateRequest{ClientID: "c", NewTasks: []task.Vertex{{Program: "p", Contacts: []int{3}}}}, status: http.StatusBadRequest},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			errResp := &endpoint.ErrorResponse{}
			assert.Equal(t, testCase.status, post(t, ts, testCase.path, testCase.body, errResp))
			assert.NotEmpty(t, errResp.Error)
		})
	}

	code, _ := get(t, ts, "/program?task_id=garbage")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = get(t, ts, "/pointers?client_id=nobody")
	assert.Equal(t, http.StatusNotFound, code)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/workers/missing", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_DeregisterAndMetrics(t *testing.T) {
	ts := newServer(t)
	post(t, ts, "/register", &endpoint.RegisterRequest{WorkerID: "worker0", Cores: 1}, nil)
	post(t, ts, "/register", &endpoint.RegisterRequest{WorkerID: "worker1", Cores: 1}, nil)
	post(t, ts, "/allocate", &endpoint.AllocateRequest{ClientID: "client1", NewTasks: []task.Vertex{{Program: "a"}}}, nil)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/workers/worker0", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	report := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"client1~0~worker0": "client1~0~worker1"}, report["migrated"])

	code, body := get(t, ts, "/allocation?client_id=client1")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"task_ids":["client1~0~worker1"]}`, string(body))

	code, body = get(t, ts, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "fluxgrid_")
}
