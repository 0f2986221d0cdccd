// Package quictransport binds the agent protocol's transport abstraction to
// QUIC. The harvester dials agents directly by host address; there is no
// signaling plane.
package quictransport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPNProtocol is the Application-Layer Protocol Negotiation identifier for
// the log harvest agent protocol.
const ALPNProtocol = "xcel-logharvest-v1"

// ServerTLSConfig returns a TLS configuration for the agent listener.
// Uses a self-signed certificate; the fleet network is trusted.
func ServerTLSConfig() (*tls.Config, error) {
	cert, err := generateSelfSignedCert()
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPNProtocol},
	}, nil
}

// ClientTLSConfig returns a TLS configuration for dialing agents.
// Certificate verification is skipped to match the self-signed server side.
func ClientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{ALPNProtocol},
	}
}

// DefaultQUICConfig returns tuned QUIC settings for bulk file reads over
// possibly slow links: generous receive windows and a keep-alive so an idle
// control period does not drop the connection.
func DefaultQUICConfig() *quic.Config {
	return &quic.Config{
		KeepAlivePeriod:                10 * time.Second,
		MaxIdleTimeout:                 30 * time.Second,
		MaxIncomingStreams:             100,
		InitialConnectionReceiveWindow: 64 * 1024 * 1024,
		MaxConnectionReceiveWindow:     64 * 1024 * 1024,
		InitialStreamReceiveWindow:     16 * 1024 * 1024,
		MaxStreamReceiveWindow:         16 * 1024 * 1024,
	}
}

func generateSelfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Xcelerator"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  priv,
	}, nil
}

// Listen starts a QUIC listener on addr (e.g. ":7443").
func Listen(addr string, logger *slog.Logger) (*quic.Listener, error) {
	tlsConfig, err := ServerTLSConfig()
	if err != nil {
		return nil, err
	}

	listener, err := quic.ListenAddr(addr, tlsConfig, DefaultQUICConfig())
	if err != nil {
		logger.Error("QUIC listen failed", "error", err, "addr", addr)
		return nil, err
	}

	logger.Info("QUIC listener created", "addr", listener.Addr())
	return listener, nil
}

// Dial connects to an agent at addr (host:port).
func Dial(ctx context.Context, addr string, logger *slog.Logger) (quic.Connection, error) {
	conn, err := quic.DialAddr(ctx, addr, ClientTLSConfig(), DefaultQUICConfig())
	if err != nil {
		logger.Error("QUIC dial failed", "error", err, "addr", addr)
		return nil, err
	}

	logger.Debug("QUIC connection established", "addr", addr)
	return conn, nil
}
