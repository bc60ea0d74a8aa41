package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/datau/pkg/conversation"
	"github.com/harunnryd/datau/pkg/errorsx"
	"github.com/harunnryd/datau/pkg/providers/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func botFactory(ctx context.Context, id, traceID string) (*conversation.Bot, error) {
	return conversation.New(conversation.Config{
		SystemPrompt: "system",
		LLM:          mock.NewLLMAdapter(mock.LLMConfig{}),
		SessionID:    id,
		TraceID:      traceID,
	}), nil
}

func TestAudioBufferLifecycle(t *testing.T) {
	var b AudioBuffer
	require.Error(t, b.Write([]byte("x")))
	_, err := b.Flush()
	assert.ErrorIs(t, err, ErrNoAudio)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonAudio))

	b.Start("audio/webm;codecs=opus")
	require.NoError(t, b.Write([]byte("ab")))
	require.NoError(t, b.Write([]byte("cd")))
	audio, err := b.Flush()
	require.NoError(t, err)
	assert.Equal(t, "input_audio.webm", audio.Name)
	assert.Equal(t, "audio/webm;codecs=opus", audio.MIMEType)
	assert.Equal(t, []byte("abcd"), audio.Data)
	assert.False(t, b.Started())

	_, err = b.Flush()
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestAudioBufferStartDiscardsPrevious(t *testing.T) {
	var b AudioBuffer
	b.Start("audio/wav")
	require.NoError(t, b.Write([]byte("old")))
	b.Start("audio/wav")
	require.NoError(t, b.Write([]byte("new")))
	audio, err := b.Flush()
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), audio.Data)
	b.Start("audio/wav")
	b.Reset()
	assert.False(t, b.Started())
}

func TestDefaultAudioSettings(t *testing.T) {
	m := DefaultAudioSettings().Millis()
	assert.Equal(t, int64(-20), m["min_decibels"])
	assert.Equal(t, int64(2000), m["initial_silence_timeout"])
	assert.Equal(t, int64(3500), m["silence_timeout"])
	assert.Equal(t, int64(15000), m["max_duration"])
	assert.Equal(t, int64(1000), m["chunk_duration"])
	assert.Equal(t, int64(44100), m["sample_rate"])
}

func TestIsStart(t *testing.T) {
	assert.True(t, IsStart("true"))
	assert.True(t, IsStart("1"))
	assert.False(t, IsStart(""))
	assert.False(t, IsStart("false"))
}

func TestSessionRunsJobsSequentially(t *testing.T) {
	s := New("s1", "t1", nil, DefaultAudioSettings())
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		i := i
		require.True(t, s.Submit(func(ctx context.Context, sess *Session) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)

	s.Close()
	s.Close()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session goroutine did not exit")
	}
	assert.False(t, s.Submit(func(ctx context.Context, sess *Session) {}))
	assert.Error(t, s.Context().Err())
}

func TestSessionCancelCurrent(t *testing.T) {
	s := New("s1", "t1", nil, DefaultAudioSettings())
	defer s.Close()
	assert.False(t, s.CancelCurrent())

	started := make(chan struct{})
	cancelled := make(chan error, 1)
	require.True(t, s.Submit(func(ctx context.Context, sess *Session) {
		close(started)
		<-ctx.Done()
		cancelled <- ctx.Err()
	}))
	ran := make(chan struct{})
	require.True(t, s.Submit(func(ctx context.Context, sess *Session) {
		assert.NoError(t, ctx.Err())
		close(ran)
	}))

	<-started
	assert.True(t, s.CancelCurrent())
	select {
	case err := <-cancelled:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("job was not cancelled")
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued job did not run after cancel")
	}
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry(botFactory, DefaultAudioSettings())
	s, created, err := reg.GetOrCreate(context.Background(), "a", "trace-a")
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, s.Bot)
	assert.Len(t, s.Bot.History(), 1)

	again, created, err := reg.GetOrCreate(context.Background(), "a", "trace-a")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, s, again)

	_, _, err = reg.GetOrCreate(context.Background(), "", "")
	assert.Error(t, err)

	_, _, err = reg.GetOrCreate(context.Background(), "b", "trace-b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), reg.Count())

	assert.True(t, reg.Remove("a"))
	assert.False(t, reg.Remove("a"))
	_, ok := reg.Get("a")
	assert.False(t, ok)
	<-s.Done()

	reg.SetDraining(true)
	_, _, err = reg.GetOrCreate(context.Background(), "c", "")
	assert.ErrorIs(t, err, ErrDraining)

	reg.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.True(t, reg.WaitForEmpty(ctx, 10*time.Millisecond))
}

func TestRegistryFactoryError(t *testing.T) {
	boom := errors.New("schema unavailable")
	reg := NewRegistry(func(ctx context.Context, id, traceID string) (*conversation.Bot, error) {
		return nil, boom
	}, DefaultAudioSettings())
	_, _, err := reg.GetOrCreate(context.Background(), "a", "")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), reg.Count())
}
