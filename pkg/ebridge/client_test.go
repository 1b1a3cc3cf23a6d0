package ebridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freePort returns a port nothing is listening on.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestClient_WriteSlotHoldsOneWrite(t *testing.T) {
	cli, err := NewClient(ClientConfig{Host: "127.0.0.1", Port: freePort(t)})
	require.NoError(t, err)

	assert.True(t, cli.Write(nil))
	assert.True(t, cli.Write(payloads("first")))
	assert.False(t, cli.Write(payloads("second")))

	_, ok := cli.Read()
	assert.False(t, ok)
	assert.False(t, cli.Connected())
}

func TestClient_WriteBeforeConnectIsDelivered(t *testing.T) {
	srv := startServer(t, ServerConfig{Processor: echo})
	cli, err := NewClient(ClientConfig{Host: "127.0.0.1", Port: portOf(t, srv)})
	require.NoError(t, err)
	require.True(t, cli.Write(payloads("early")))

	require.NoError(t, cli.Start(context.Background()))
	t.Cleanup(func() { _ = cli.Destroy() })
	assert.Equal(t, []string{"early"}, readN(t, cli, 1))
}

func TestClient_RefusedConnectionSchedulesRetry(t *testing.T) {
	rec := &recorder{}
	startClient(t, ClientConfig{Port: freePort(t)}, WithEventHandler(rec))

	require.Eventually(t, func() bool {
		_, _, _, disconnected := rec.counts()
		return disconnected >= 1
	}, 5*time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	ev := rec.disconnected[0]
	rec.mu.Unlock()
	assert.ErrorIs(t, ev.Err, ErrTransport)
	assert.Equal(t, 0, ev.Retry)
	assert.Equal(t, time.Second, ev.RetryIn)
}

func TestClient_ReconnectsAfterServerRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the reconnect delay")
	}
	srv := startServer(t, ServerConfig{Processor: echo})
	port := portOf(t, srv)

	rec := &recorder{}
	cli := startClient(t, ClientConfig{Port: port}, WithEventHandler(rec))
	require.Eventually(t, cli.Connected, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, srv.Destroy())
	require.Eventually(t, func() bool {
		_, _, _, disconnected := rec.counts()
		return disconnected == 1
	}, 5*time.Second, 5*time.Millisecond)
	assert.False(t, cli.Connected())

	rec.mu.Lock()
	lost := rec.disconnected[0]
	rec.mu.Unlock()
	assert.Error(t, lost.Err)
	assert.Equal(t, 0, lost.Retry)
	assert.Equal(t, time.Second, lost.RetryIn)

	startServer(t, ServerConfig{Port: port, Processor: reverse})
	require.Eventually(t, func() bool {
		_, _, connected, _ := rec.counts()
		return connected == 2
	}, 10*time.Second, 10*time.Millisecond)

	require.True(t, cli.Write(payloads("again")))
	assert.Equal(t, []string{"niaga"}, readN(t, cli, 1))
}

func TestClient_Lifecycle(t *testing.T) {
	rec := &recorder{}
	cli, err := NewClient(ClientConfig{Host: "127.0.0.1", Port: freePort(t)}, WithEventHandler(rec))
	require.NoError(t, err)

	assert.ErrorIs(t, cli.Destroy(), ErrNotRunning)
	require.NoError(t, cli.Start(context.Background()))
	assert.ErrorIs(t, cli.Start(context.Background()), ErrAlreadyRunning)
	assert.Equal(t, StateRunning, cli.Status())

	require.NoError(t, cli.Destroy())
	assert.Equal(t, StateStopped, cli.Status())
	assert.Equal(t,
		[]State{StateStarting, StateRunning, StateStopping, StateStopped},
		rec.snapshotStates())
}

func TestClient_StopsWhenContextCancelled(t *testing.T) {
	cli, err := NewClient(ClientConfig{Host: "127.0.0.1", Port: freePort(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, cli.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return cli.Status() == StateStopped },
		5*time.Second, 5*time.Millisecond)
}

func TestNewClient_BadCAFile(t *testing.T) {
	_, err := NewClient(ClientConfig{Host: "127.0.0.1", Port: 9000, CAFile: "/nonexistent/ca.pem"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
