package ebridge

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/bft-labs/ebridge/internal/domain"
)

// CertStore holds the server certificate and lets it be replaced while the
// server runs. New handshakes pick up the latest certificate.
type CertStore struct {
	certFile string
	keyFile  string
	cert     atomic.Pointer[tls.Certificate]
}

// LoadCertStore reads a PEM certificate and key pair.
func LoadCertStore(certFile, keyFile string) (*CertStore, error) {
	s := &CertStore{certFile: certFile, keyFile: keyFile}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the key pair from disk. On error the previous certificate
// stays in use.
func (s *CertStore) Reload() error {
	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		return fmt.Errorf("%w: load key pair %s: %v", domain.ErrInvalidConfig, s.certFile, err)
	}
	s.cert.Store(&cert)
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (s *CertStore) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return s.cert.Load(), nil
}

func serverTLSConfig(store *CertStore) *tls.Config {
	return &tls.Config{
		GetCertificate: store.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

// clientTLSConfig trusts the system pool plus caFile, if given.
func clientTLSConfig(caFile, serverName string, insecure bool) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}

	roots, err := x509.SystemCertPool()
	if err != nil {
		roots = x509.NewCertPool()
	}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("%w: read CA file %s: %v", domain.ErrInvalidConfig, caFile, err)
		}
		if !roots.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in CA file %s", domain.ErrInvalidConfig, caFile)
		}
	}
	cfg.RootCAs = roots
	cfg.InsecureSkipVerify = insecure
	return cfg, nil
}
