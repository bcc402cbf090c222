package tls

import (
	"crypto/tls"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/config"
)

func TestDevCertGeneratorReusesValidCert(t *testing.T) {
	dir := t.TempDir()
	gen := NewDevCertGenerator(dir)

	first, err := gen.GenerateCert([]string{"localhost", "127.0.0.1"})
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(first.Certificate[0])
	require.NoError(t, err)
	assert.Contains(t, leaf.DNSNames, "localhost")
	assert.Len(t, leaf.IPAddresses, 1)

	second, err := gen.GenerateCert([]string{"localhost"})
	require.NoError(t, err)
	assert.Equal(t, first.Certificate[0], second.Certificate[0])
}

func TestDevCertGeneratorReissuesForNewHost(t *testing.T) {
	gen := NewDevCertGenerator(t.TempDir())

	first, err := gen.GenerateCert([]string{"localhost"})
	require.NoError(t, err)
	second, err := gen.GenerateCert([]string{"localhost", "api.example.test"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Certificate[0], second.Certificate[0])
}

func TestDevCertGeneratorReissuesExpired(t *testing.T) {
	gen := NewDevCertGenerator(t.TempDir())
	first, err := gen.GenerateCert([]string{"localhost"})
	require.NoError(t, err)

	gen.now = func() time.Time { return time.Now().Add(devCertValid + time.Hour) }
	second, err := gen.GenerateCert([]string{"localhost"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Certificate[0], second.Certificate[0])
}

func TestManagerFallsBackToDevCertOutsideProduction(t *testing.T) {
	m := NewTLSManager(config.ServerConfig{EnableTLS: true, AutoCertDir: t.TempDir()}, false)
	cert, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: "localhost"})
	require.NoError(t, err)
	require.NotNil(t, cert)

	again, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: "localhost"})
	require.NoError(t, err)
	assert.Same(t, cert, again)
	assert.Nil(t, m.AutocertManager())
}

func TestManagerRefusesSelfSignedInProduction(t *testing.T) {
	m := NewTLSManager(config.ServerConfig{EnableTLS: true, AutoCertDir: t.TempDir()}, true)
	_, err := m.GetCertificate(&tls.ClientHelloInfo{ServerName: "example.com"})
	assert.Error(t, err)

	cfg := m.GetTLSConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.NotContains(t, cfg.NextProtos, "acme-tls/1")
}
