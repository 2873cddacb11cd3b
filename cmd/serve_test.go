package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/commonplace/internal/api"
	"github.com/sells-group/commonplace/internal/config"
)

func TestResolvePort(t *testing.T) {
	assert.Equal(t, 9090, resolvePort(9090, 8080))
	assert.Equal(t, 8080, resolvePort(0, 8080))
	assert.Equal(t, 0, resolvePort(0, 0))
}

func TestShutdownTimeout(t *testing.T) {
	c := &config.Config{}
	assert.Equal(t, 15*time.Second, shutdownTimeout(c))
	c.Server.ShutdownTimeoutSecs = 3
	assert.Equal(t, 3*time.Second, shutdownTimeout(c))
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestStartServer_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &config.Config{Server: config.ServerConfig{AllowedOrigins: []string{"*"}}}
	handler := buildMux(c, api.Deps{})
	port := freePort(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- startServer(ctx, handler, port, time.Second)
	}()

	var ready bool
	for range 50 {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/health", port))
		if err == nil {
			_ = resp.Body.Close()
			ready = resp.StatusCode == http.StatusOK
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.True(t, ready, "server never became ready")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartServer_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck
	port := l.Addr().(*net.TCPAddr).Port

	err = startServer(context.Background(), http.NotFoundHandler(), port, time.Second)
	assert.Error(t, err)
}

type countingPurger struct{ n atomic.Int32 }

func (p *countingPurger) Purge(context.Context) (int64, error) {
	p.n.Add(1)
	return 2, nil
}

func TestPurgeLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &countingPurger{}

	done := make(chan struct{})
	go func() {
		purgeLoop(ctx, p, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return p.n.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestPurgeLoop_DisabledInterval(t *testing.T) {
	p := &countingPurger{}
	purgeLoop(context.Background(), p, 0)
	assert.Zero(t, p.n.Load())
}
