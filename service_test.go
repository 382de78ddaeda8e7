package fluxgrid_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/containerd/errdefs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/fluxgrid"
	"github.com/viant/fluxgrid/model/task"
	"github.com/viant/fluxgrid/service/event"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newService(t *testing.T, timeout time.Duration) (*fluxgrid.Service, *fakeclock.FakeClock, *tracetest.InMemoryExporter) {
	logger, _ := test.NewNullLogger()
	clk := fakeclock.NewFakeClock(time.Unix(0, 0))
	cfg := fluxgrid.DefaultConfig()
	cfg.Liveness.Timeout = timeout
	exporter := tracetest.NewInMemoryExporter()
	srv, err := fluxgrid.New(
		fluxgrid.WithConfig(cfg),
		fluxgrid.WithClock(clk),
		fluxgrid.WithLogger(logger),
		fluxgrid.WithTracingExporter("fluxgrid", fluxgrid.Version, exporter),
	)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, clk, exporter
}

func TestService_Pipeline(t *testing.T) {
	ctx := context.Background()
	srv, _, exporter := newService(t, 0)

	_, err := srv.Register(ctx, "worker0", 2)
	require.NoError(t, err)
	_, err = srv.Register(ctx, "worker1", 2)
	require.NoError(t, err)
	_, err = srv.Register(ctx, "worker1", 2)
	assert.True(t, errdefs.IsAlreadyExists(err))

	ids, err := srv.Allocate(ctx, "client1", []task.Vertex{
		{Program: "program0", Contacts: []int{1}},
		{Program: "program1", Contacts: []int{2}},
		{Program: "program2", Contacts: []int{}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"client1~0~worker0", "client1~1~worker0", "client1~2~worker1"}, ids)

	sent, err := srv.Heartbeat(ctx, "worker0", nil)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, []string{"client1~2~worker1"}, sent[1].Contacts)

	allocation, err := srv.Allocation(ctx, "client1")
	require.NoError(t, err)
	assert.Equal(t, ids, allocation)
	pointers, err := srv.Pointers(ctx, "client1")
	require.NoError(t, err)
	assert.Equal(t, "worker1", pointers[2].WorkerID)
	program, err := srv.Program(ctx, "client1~1~worker0")
	require.NoError(t, err)
	assert.Equal(t, "program1", program)

	_, err = srv.Allocation(ctx, "missing")
	assert.True(t, errdefs.IsNotFound(err))
	_, err = srv.Heartbeat(ctx, "missing", nil)
	assert.True(t, errdefs.IsNotFound(err))
	assert.Equal(t, 2.0, testutil.ToFloat64(srv.Metrics().Queue.WithLabelValues("worker0", "active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.Metrics().Heartbeats))

	state := srv.State(ctx)
	require.Len(t, state.Workers, 2)
	assert.Equal(t, []string{"client1~0~worker0", "client1~1~worker0"}, state.Workers[0].Active)
	assert.Equal(t, []string{"client1~2~worker1"}, state.Workers[1].Pending)
	assert.Equal(t, ids, state.Clients["client1"])

	var names []string
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}
	assert.Contains(t, names, "allocator.Allocate")
	assert.Contains(t, names, "scheduler.Heartbeat")
}

func TestService_GeneratedWorkerID(t *testing.T) {
	ctx := context.Background()
	srv, _, _ := newService(t, 0)
	id, err := srv.Register(ctx, "", 1)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, err = srv.Heartbeat(ctx, id, nil)
	require.NoError(t, err)
}

func TestService_Deregister(t *testing.T) {
	ctx := context.Background()
	srv, _, _ := newService(t, 0)
	cancelled := event.SubscribeOf[event.Cancelled](srv.Events())

	_, err := srv.Register(ctx, "worker0", 1)
	require.NoError(t, err)
	_, err = srv.Allocate(ctx, "client1", []task.Vertex{{Program: "a"}})
	require.NoError(t, err)

	report, err := srv.Deregister(ctx, "worker0")
	require.NoError(t, err)
	assert.Equal(t, []string{"client1"}, report.Cancelled)

	allocation, err := srv.Allocation(ctx, "client1")
	require.NoError(t, err)
	assert.Empty(t, allocation)

	select {
	case v := <-cancelled:
		assert.Equal(t, "client1", v.(*event.Event[event.Cancelled]).Context.ClientID)
	case <-time.After(time.Second):
		t.Fatal("JobCancelled was not published")
	}

	_, err = srv.Deregister(ctx, "worker0")
	assert.True(t, errdefs.IsNotFound(err))
}

func TestService_LivenessTimeout(t *testing.T) {
	ctx := context.Background()
	timeout := time.Minute
	srv, clk, _ := newService(t, timeout)

	_, err := srv.Register(ctx, "worker0", 1)
	require.NoError(t, err)
	_, err = srv.Register(ctx, "worker1", 1)
	require.NoError(t, err)
	_, err = srv.Allocate(ctx, "client1", []task.Vertex{{Program: "a", Contacts: []int{1}}, {Program: "b"}})
	require.NoError(t, err)
	_, err = srv.Register(ctx, "worker2", 1)
	require.NoError(t, err)

	clk.WaitForNWatchersAndIncrement(timeout/2, 3)
	for _, id := range []string{"worker0", "worker2"} {
		_, err = srv.Heartbeat(ctx, id, nil)
		require.NoError(t, err)
	}
	clk.Increment(timeout/2 + time.Second)

	require.Eventually(t, func() bool {
		allocation, err := srv.Allocation(ctx, "client1")
		return err == nil && len(allocation) == 2 && allocation[1] == "client1~1~worker2"
	}, time.Second, 5*time.Millisecond)

	state := srv.State(ctx)
	require.Len(t, state.Workers, 2)
	assert.Equal(t, "worker2", state.Workers[1].ID)

	// worker0 was active with a contact to the moved task
	sent, err := srv.Heartbeat(ctx, "worker0", []string{"client1~0~worker0"})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Update())
	assert.Equal(t, []string{"client1~1~worker2"}, sent[0].Contacts)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := fluxgrid.DefaultConfig()
	cfg.Processor.WorkerCount = 0
	_, err := fluxgrid.New(fluxgrid.WithConfig(cfg))
	assert.Error(t, err)
}

func TestService_RegistryMirror(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()
	cfg := fluxgrid.DefaultConfig()
	cfg.Liveness.Timeout = 0
	cfg.Registry.MirrorURL = dir
	srv, err := fluxgrid.New(fluxgrid.WithConfig(cfg), fluxgrid.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(ctx) })

	_, err = srv.Register(ctx, "worker0", 1)
	require.NoError(t, err)
	_, err = srv.Allocate(ctx, "client1", []task.Vertex{{Program: "a"}})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "client1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "client1~0~worker0")
}
