package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/fluxgrid/model/task"
)

func TestJob(t *testing.T) {
	a := task.New("client1", 0, "worker0", "a")
	b := task.New("client1", 1, "worker1", "b")
	j := New("client1", []*task.Task{a, b})

	assert.Equal(t, []string{"client1~0~worker0", "client1~1~worker1"}, j.IDs())
	assert.Equal(t, []task.Pointer{a.Pointer(), b.Pointer()}, j.Pointers())
	assert.False(t, j.Cancelled())

	clone := j.Clone()
	clone.Tasks[0].Reassign("worker2")
	assert.Equal(t, "client1~0~worker0", a.ID)
	assert.Equal(t, "client1~0~worker2", clone.IDs()[0])

	empty := New("client2", nil)
	assert.NotNil(t, empty.Tasks)
	assert.True(t, empty.Cancelled())
	assert.Nil(t, (*Job)(nil).Clone())
}
