package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/fluxgrid/model/job"
	"github.com/viant/fluxgrid/model/task"
	"github.com/viant/fluxgrid/service/dao/job/fs/fstest"
)

func readMirror(t *testing.T, dir, clientID string) *job.Job {
	data, err := os.ReadFile(filepath.Join(dir, clientID+".json"))
	require.NoError(t, err)
	ret := &job.Job{}
	require.NoError(t, json.Unmarshal(data, ret))
	return ret
}

func TestService_Mirror(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "jobs")
	logger, _ := test.NewNullLogger()
	srv, err := New(ctx, dir, WithLogger(logger))
	require.NoError(t, err)

	a := task.New("client1", 0, "worker0", "a")
	a.Contacts = []string{"client1~1~worker1"}
	b := task.New("client1", 1, "worker1", "b")
	require.NoError(t, srv.Save(ctx, job.New("client1", []*task.Task{a, b})))
	require.NoError(t, srv.Save(ctx, job.New("client2", []*task.Task{task.New("client2", 0, "worker0", "c")})))

	mirrored := readMirror(t, dir, "client1")
	assert.Equal(t, []string{"client1~0~worker0", "client1~1~worker1"}, mirrored.IDs())

	moves := map[string]string{"client1~1~worker1": "client1~1~worker2"}
	require.NoError(t, srv.Mutate(ctx, func(j *job.Job) {
		for _, candidate := range j.Tasks {
			if next, ok := moves[candidate.ID]; ok {
				pointer, _ := task.ParseID(next)
				candidate.Reassign(pointer.WorkerID)
			}
			candidate.RewriteContacts(moves)
		}
	}))
	mirrored = readMirror(t, dir, "client1")
	assert.Equal(t, []string{"client1~0~worker0", "client1~1~worker2"}, mirrored.IDs())
	assert.Equal(t, []string{"client1~1~worker2"}, mirrored.Tasks[0].Contacts)

	ids, err := srv.TaskIDs(ctx, "client1")
	require.NoError(t, err)
	assert.Equal(t, mirrored.IDs(), ids)

	require.NoError(t, srv.Cancel(ctx, "client2"))
	assert.True(t, readMirror(t, dir, "client2").Cancelled())

	require.NoError(t, srv.Delete(ctx, "client2"))
	_, err = os.Stat(filepath.Join(dir, "client2.json"))
	assert.True(t, os.IsNotExist(err))
	assert.True(t, errdefs.IsNotFound(srv.Delete(ctx, "client2")))
	assert.True(t, errdefs.IsNotFound(srv.Cancel(ctx, "client3")))
}

func TestNew_EmptyURL(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)
}

func TestService_SaveKeepsEntryOnMirrorFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()
	storage := fstest.New()
	srv, err := New(ctx, dir, WithFS(storage), WithLogger(logger))
	require.NoError(t, err)

	require.NoError(t, srv.Save(ctx, job.New("client1", []*task.Task{task.New("client1", 0, "worker0", "a")})))

	storage.Fail.Store(true)
	err = srv.Save(ctx, job.New("client1", []*task.Task{task.New("client1", 0, "worker1", "b")}))
	assert.ErrorIs(t, err, fstest.ErrDiskFull)

	program, err := srv.Program(ctx, "client1~0~worker0")
	require.NoError(t, err)
	assert.Equal(t, "a", program)
	ids, err := srv.TaskIDs(ctx, "client1")
	require.NoError(t, err)
	assert.Equal(t, []string{"client1~0~worker0"}, ids)
	assert.Equal(t, []string{"client1~0~worker0"}, readMirror(t, dir, "client1").IDs())

	// memory is authoritative for cancellation; the error reports a stale mirror
	err = srv.Cancel(ctx, "client1")
	assert.ErrorIs(t, err, fstest.ErrDiskFull)
	ids, err = srv.TaskIDs(ctx, "client1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.True(t, errdefs.IsInvalidArgument(srv.Save(ctx, nil)))
	assert.True(t, errdefs.IsInvalidArgument(srv.Save(ctx, job.New("", nil))))
}
