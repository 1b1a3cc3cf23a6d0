package ebridge

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var echo = ProcessorFunc(func(_ context.Context, _ string, blocks []Block) ([]Block, error) {
	return blocks, nil
})

var reverse = ProcessorFunc(func(_ context.Context, _ string, blocks []Block) ([]Block, error) {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		data := bytes.Clone(b.Data)
		for l, r := 0, len(data)-1; l < r; l, r = l+1, r-1 {
			data[l], data[r] = data[r], data[l]
		}
		out[i] = Block{Seq: b.Seq, Data: data}
	}
	return out, nil
})

// startServer runs srv in the background and waits until it listens.
func startServer(t *testing.T, cfg ServerConfig, opts ...Option) *Server {
	t.Helper()
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.IdleDelay == 0 {
		cfg.IdleDelay = 2 * time.Millisecond
	}
	srv, err := NewServer(cfg, opts...)
	require.NoError(t, err)

	ready := srv.Ready()
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(context.Background()) }()

	select {
	case <-ready:
	case err := <-errc:
		t.Fatalf("server exited before listening: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start listening")
	}
	require.Eventually(t, func() bool { return srv.Status() == StateRunning },
		5*time.Second, time.Millisecond)
	t.Cleanup(func() { _ = srv.Destroy() })
	return srv
}

func portOf(t *testing.T, srv *Server) int {
	t.Helper()
	addr, ok := srv.Addr().(*net.TCPAddr)
	require.True(t, ok, "unexpected addr %v", srv.Addr())
	return addr.Port
}

func startClient(t *testing.T, cfg ClientConfig, opts ...Option) *Client {
	t.Helper()
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.IdleDelay == 0 {
		cfg.IdleDelay = 2 * time.Millisecond
	}
	cli, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, cli.Start(context.Background()))
	t.Cleanup(func() { _ = cli.Destroy() })
	return cli
}

// readN collects payloads from cli until n have arrived.
func readN(t *testing.T, cli *Client, n int) []string {
	t.Helper()
	var got []string
	require.Eventually(t, func() bool {
		for {
			payloads, ok := cli.Read()
			if !ok {
				break
			}
			for _, p := range payloads {
				got = append(got, string(p))
			}
		}
		return len(got) >= n
	}, 5*time.Second, 5*time.Millisecond)
	return got
}

func payloads(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

// writeCert generates a self-signed certificate for 127.0.0.1 and returns the
// certificate and key paths.
func writeCert(t *testing.T) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "ebridge test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

// recorder captures events from any goroutine.
type recorder struct {
	BaseEventHandler

	mu           sync.Mutex
	states       []State
	opened       []ConnectionEvent
	closed       []ConnectionEvent
	connected    []ConnectedEvent
	disconnected []DisconnectedEvent
}

func (r *recorder) OnStateChange(e StateChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, e.Current)
}

func (r *recorder) OnConnectionOpened(e ConnectionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, e)
}

func (r *recorder) OnConnectionClosed(e ConnectionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, e)
}

func (r *recorder) OnConnected(e ConnectedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = append(r.connected, e)
}

func (r *recorder) OnDisconnected(e DisconnectedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, e)
}

func (r *recorder) counts() (opened, closed, connected, disconnected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.opened), len(r.closed), len(r.connected), len(r.disconnected)
}

func (r *recorder) snapshotStates() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}
