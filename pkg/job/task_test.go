package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type recordingTask struct {
	got  testPayload
	err  error
	runs int
}

func (t *recordingTask) Name() string { return "recording" }

func (t *recordingTask) Handle(_ context.Context, p testPayload) error {
	t.runs++
	t.got = p
	return t.err
}

func TestTyped(t *testing.T) {
	t.Parallel()

	t.Run("decodes payload", func(t *testing.T) {
		t.Parallel()

		task := &recordingTask{}
		err := typed[testPayload](task).Run(context.Background(), json.RawMessage(`{"key":"a/b.txt","count":2}`))
		require.NoError(t, err)
		assert.Equal(t, testPayload{Key: "a/b.txt", Count: 2}, task.got)
	})

	t.Run("empty payload yields zero value", func(t *testing.T) {
		t.Parallel()

		task := &recordingTask{}
		require.NoError(t, typed[testPayload](task).Run(context.Background(), nil))
		assert.Equal(t, 1, task.runs)
		assert.Zero(t, task.got)
	})

	t.Run("invalid payload", func(t *testing.T) {
		t.Parallel()

		task := &recordingTask{}
		err := typed[testPayload](task).Run(context.Background(), json.RawMessage(`{"key":`))
		require.ErrorIs(t, err, ErrInvalidPayload)
		assert.Zero(t, task.runs)
	})

	t.Run("propagates handler error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		task := &recordingTask{err: boom}
		err := typed[testPayload](task).Run(context.Background(), nil)
		require.ErrorIs(t, err, boom)
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	r.add("b", typed[testPayload](&recordingTask{}))
	r.add("a", typed[testPayload](&recordingTask{}))
	r.add("nil", nil)

	_, ok := r.lookup("a")
	assert.True(t, ok)
	_, ok = r.lookup("missing")
	assert.False(t, ok)
	_, ok = r.lookup("nil")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b", "nil"}, r.names())
}
