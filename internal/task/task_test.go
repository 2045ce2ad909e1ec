package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-devlink/logger"
	"github.com/stretchr/testify/require"
)

func TestManager_Go(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewPermissiveMockLogger())

	errBoom := errors.New("boom")
	var exitErr atomic.Value

	tk, err := mgr.Go("worker", func(ctx context.Context) error {
		return errBoom
	}, func(err error) {
		exitErr.Store(err)
	})
	require.NoError(err)
	require.Equal("worker", tk.Name())

	<-tk.Done()
	require.ErrorIs(tk.Err(), errBoom)
	require.ErrorIs(exitErr.Load().(error), errBoom) //nolint:forcetypeassert

	mgr.Wait()
	require.Equal(0, mgr.TaskCount())
}

func TestManager_Cancel(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewPermissiveMockLogger())

	started := make(chan struct{})
	tk, err := mgr.Go("loop", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	require.NoError(err)

	<-started
	require.Equal(1, mgr.TaskCount())

	tk.Cancel()
	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not exit after cancel")
	}
	require.ErrorIs(tk.Err(), context.Canceled)
}

func TestManager_RecoverPanic(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewPermissiveMockLogger())

	exitCh := make(chan error, 1)
	_, err := mgr.Go("panicky", func(ctx context.Context) error {
		panic("unexpected")
	}, func(err error) {
		exitCh <- err
	})
	require.NoError(err)

	select {
	case err := <-exitCh:
		require.ErrorIs(err, ErrPanic)
		require.Contains(err.Error(), "unexpected")
	case <-time.After(time.Second):
		t.Fatal("exit handler not invoked")
	}
}

func TestManager_StopAndRestart(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewPermissiveMockLogger())

	for i := 0; i < 3; i++ {
		_, err := mgr.Go("loop", func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}, nil)
		require.NoError(err)
	}

	mgr.Stop()
	_, err := mgr.Go("late", func(ctx context.Context) error { return nil }, nil)
	require.ErrorIs(err, ErrStopped)

	mgr.Wait()
	require.Equal(0, mgr.TaskCount())

	tk, err := mgr.Go("again", func(ctx context.Context) error { return nil }, nil)
	require.NoError(err)
	require.NoError(tk.Err())
}
