package eventloop_test

import (
	"os"
	"testing"
	"time"

	"github.com/rediscore/server/internal/eventloop"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterFiresOnReadable(t *testing.T) {
	loop, err := eventloop.New(zap.NewNop())
	require.NoError(t, err)
	defer loop.Close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	fired := make(chan struct{}, 1)
	require.NoError(t, loop.Register(int(r.Fd()), eventloop.Readable, func(fd int, events uint32) {
		buf := make([]byte, 16)
		os.NewFile(uintptr(fd), "pipe").Read(buf) //nolint:errcheck
		select {
		case fired <- struct{}{}:
		default:
		}
	}))

	go loop.Run()
	defer loop.Stop()

	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never fired")
	}
}

func TestTickCallbackFires(t *testing.T) {
	loop, err := eventloop.New(zap.NewNop())
	require.NoError(t, err)
	defer loop.Close()

	ticks := make(chan struct{}, 4)
	loop.RegisterTick(func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})

	go loop.Run()
	defer loop.Stop()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never fired")
	}
}
