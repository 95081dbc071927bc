// Package tls provides the HTTPS certificate for the API listener, either
// from configured PEM files or as a self-signed development certificate.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io/fs"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// File names used for the self-signed certificate.
const (
	SelfSignedCertFile = "accountd.crt"
	SelfSignedKeyFile  = "accountd.key"
)

const (
	selfSignedValidity = 365 * 24 * time.Hour
	// A stored self-signed certificate this close to expiry is replaced.
	renewBefore = 7 * 24 * time.Hour
)

// Config selects how the API listener gets its certificate. TLS is off
// unless a certificate pair is configured or self_signed is set.
type Config struct {
	CertFile   string   `koanf:"cert_file" json:"cert_file,omitempty"`
	KeyFile    string   `koanf:"key_file" json:"key_file,omitempty"`
	SelfSigned bool     `koanf:"self_signed" json:"self_signed"`
	Hosts      []string `koanf:"hosts" json:"hosts,omitempty"`
}

// Enabled reports whether the listener should serve HTTPS.
func (c Config) Enabled() bool {
	return c.CertFile != "" || c.KeyFile != "" || c.SelfSigned
}

// Validate checks that exactly one certificate source is configured.
func (c Config) Validate() error {
	if (c.CertFile == "") != (c.KeyFile == "") {
		return oops.Code("TLS_CONFIG_INVALID").Errorf("cert_file and key_file must be set together")
	}
	if c.CertFile != "" && c.SelfSigned {
		return oops.Code("TLS_CONFIG_INVALID").Errorf("self_signed cannot be combined with cert_file")
	}
	return nil
}

// Certificate holds a certificate and its private key.
type Certificate struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// GenerateSelfSigned creates a server certificate for hosts, which may be
// DNS names or IP addresses. localhost and 127.0.0.1 are always included.
func GenerateSelfSigned(hosts []string, now time.Time) (*Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code("TLS_GENERATE_FAILED").Wrapf(err, "failed to generate key")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, oops.Code("TLS_GENERATE_FAILED").Wrapf(err, "failed to generate serial")
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"accountd"},
			CommonName:   "accountd self-signed",
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if h != "" && h != "localhost" {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Code("TLS_GENERATE_FAILED").Wrapf(err, "failed to create certificate")
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Code("TLS_GENERATE_FAILED").Wrapf(err, "failed to parse certificate")
	}
	return &Certificate{Certificate: cert, PrivateKey: key}, nil
}

// Save writes the certificate and key as PEM files in dir, creating it with
// 0700 permissions.
func (c *Certificate) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("dir", dir).Wrap(err)
	}
	if err := saveCert(filepath.Join(dir, SelfSignedCertFile), c.Certificate); err != nil {
		return err
	}
	return saveKey(filepath.Join(dir, SelfSignedKeyFile), c.PrivateKey)
}

// EnsureSelfSigned returns the paths of a self-signed certificate in dir,
// generating a new one when none exists or the stored one expires within
// seven days.
func EnsureSelfSigned(dir string, hosts []string, now time.Time) (certFile, keyFile string, err error) {
	certFile = filepath.Join(dir, SelfSignedCertFile)
	keyFile = filepath.Join(dir, SelfSignedKeyFile)

	existing, err := LoadCertificate(certFile)
	switch {
	case err == nil && now.Add(renewBefore).Before(existing.NotAfter):
		if _, statErr := os.Stat(keyFile); statErr == nil {
			return certFile, keyFile, nil
		}
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return "", "", err
	}

	cert, err := GenerateSelfSigned(hosts, now)
	if err != nil {
		return "", "", err
	}
	if err := cert.Save(dir); err != nil {
		return "", "", err
	}
	return certFile, keyFile, nil
}

// LoadCertificate reads the first certificate from a PEM file.
func LoadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", path).Wrap(err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", path).Errorf("no certificate PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return cert, nil
}

// LoadServerTLS builds a server TLS config from a certificate and key pair.
func LoadServerTLS(certFile, keyFile string) (*cryptotls.Config, error) {
	pair, err := cryptotls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").
			With("cert_file", certFile).
			With("key_file", keyFile).
			Wrap(err)
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{pair},
		MinVersion:   cryptotls.VersionTLS12,
	}, nil
}

// ServerConfig resolves cfg into a TLS config. It returns nil when TLS is
// disabled. Self-signed certificates live in certsDir.
func ServerConfig(cfg Config, certsDir string, now time.Time) (*cryptotls.Config, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	certFile, keyFile := cfg.CertFile, cfg.KeyFile
	if cfg.SelfSigned {
		var err error
		certFile, keyFile, err = EnsureSelfSigned(certsDir, cfg.Hosts, now)
		if err != nil {
			return nil, err
		}
	}
	return LoadServerTLS(certFile, keyFile)
}

// saveCert saves a certificate to a PEM file.
func saveCert(path string, cert *x509.Certificate) error {
	return writePEM(path, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

// saveKey saves an ECDSA private key to a PEM file.
func saveKey(path string, key *ecdsa.PrivateKey) error {
	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code("TLS_SAVE_FAILED").Wrapf(err, "failed to marshal key")
	}
	return writePEM(path, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
}

func writePEM(path string, block *pem.Block) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := pem.Encode(f, block); err != nil {
		_ = f.Close()
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
