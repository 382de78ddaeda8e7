package task

import (
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	testCases := []struct {
		description string
		id          string
		expect      Pointer
		expectErr   bool
	}{
		{
			description: "simple",
			id:          "client1~0~worker0",
			expect:      Pointer{TaskID: "client1~0~worker0", ClientID: "client1", VertexID: 0, WorkerID: "worker0"},
		},
		{
			description: "address client id",
			id:          "127.0.0.1:8888~12~w-1",
			expect:      Pointer{TaskID: "127.0.0.1:8888~12~w-1", ClientID: "127.0.0.1:8888", VertexID: 12, WorkerID: "w-1"},
		},
		{description: "missing worker", id: "client1~0", expectErr: true},
		{description: "empty worker", id: "client1~0~", expectErr: true},
		{description: "vertex not a number", id: "client1~x~worker0", expectErr: true},
		{description: "negative vertex", id: "client1~-1~worker0", expectErr: true},
		{description: "empty", id: "", expectErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			actual, err := ParseID(testCase.id)
			if testCase.expectErr {
				assert.ErrorIs(t, err, ErrMalformedID)
				assert.True(t, errdefs.IsInvalidArgument(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, actual)
			assert.Equal(t, testCase.id, NewID(actual.ClientID, actual.VertexID, actual.WorkerID))
		})
	}
}

func TestTask_Reassign(t *testing.T) {
	aTask := New("client1", 3, "worker0", "program")
	aTask.State = StateActive

	prev := aTask.Reassign("worker2")
	assert.Equal(t, "client1~3~worker0", prev)
	assert.Equal(t, "client1~3~worker2", aTask.ID)
	assert.Equal(t, "worker2", aTask.WorkerID)
	assert.Equal(t, StateScheduled, aTask.State)
}

func TestTask_RewriteContacts(t *testing.T) {
	aTask := New("client1", 0, "worker0", "program")
	aTask.Contacts = []string{"client1~1~worker1", "client1~2~worker0"}

	assert.False(t, aTask.RewriteContacts(map[string]string{"client1~9~worker9": "x"}))
	assert.True(t, aTask.RewriteContacts(map[string]string{"client1~1~worker1": "client1~1~worker3"}))
	assert.Equal(t, []string{"client1~1~worker3", "client1~2~worker0"}, aTask.Contacts)
}

func TestTask_Clone(t *testing.T) {
	aTask := New("client1", 0, "worker0", "program")
	aTask.Contacts = []string{"client1~1~worker0"}

	clone := aTask.Clone()
	clone.Contacts[0] = "changed"
	clone.State = StateCancelling

	assert.Equal(t, "client1~1~worker0", aTask.Contacts[0])
	assert.Equal(t, StateScheduled, aTask.State)
	assert.Nil(t, (*Task)(nil).Clone())
}

func TestState(t *testing.T) {
	assert.True(t, StateScheduled.IsPending())
	assert.True(t, StateNeedsResend.IsPending())
	assert.True(t, StateCancelling.IsPending())
	assert.False(t, StateActive.IsPending())

	assert.Equal(t, StateActive, StateNeedsResend.Dispatched())
	assert.Equal(t, StateActive, StateScheduled.Dispatched())
	assert.Equal(t, StateCancelling, StateCancelling.Dispatched())

	aTask := New("c", 0, "w", "p")
	aTask.State = StateNeedsResend
	assert.True(t, aTask.Update())
	assert.False(t, aTask.Cancel())
}
