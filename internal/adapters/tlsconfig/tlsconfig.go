// Package tlsconfig loads TLS material for MQTT clients and the embedded broker.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
)

// Files names PEM files on disk. Empty fields are skipped.
type Files struct {
	CA   string
	Cert string
	Key  string
}

// Enabled reports whether any TLS file is set.
func (f Files) Enabled() bool {
	return f.CA != "" || f.Cert != "" || f.Key != ""
}

// Client builds a client config. It returns nil when no files are set.
func Client(files Files) (*tls.Config, error) {
	if !files.Enabled() {
		return nil, nil
	}
	config := &tls.Config{}
	if files.CA != "" {
		pool, err := loadPool(files.CA)
		if err != nil {
			return nil, err
		}
		config.RootCAs = pool
	}
	if err := loadPair(config, files); err != nil {
		return nil, err
	}
	return config, nil
}

// Server builds a listener config. A CA turns on client certificate checks.
func Server(files Files) (*tls.Config, error) {
	if !files.Enabled() {
		return nil, nil
	}
	if files.Cert == "" || files.Key == "" {
		return nil, errors.New("tls listener requires cert and key")
	}
	config := &tls.Config{MinVersion: tls.VersionTLS12}
	if err := loadPair(config, files); err != nil {
		return nil, err
	}
	if files.CA != "" {
		pool, err := loadPool(files.CA)
		if err != nil {
			return nil, err
		}
		config.ClientCAs = pool
		config.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return config, nil
}

func loadPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("failed to parse CA bundle")
	}
	return pool, nil
}

func loadPair(config *tls.Config, files Files) error {
	if files.Cert == "" && files.Key == "" {
		return nil
	}
	if files.Cert == "" || files.Key == "" {
		return errors.New("both tls cert and key are required")
	}
	cert, err := tls.LoadX509KeyPair(files.Cert, files.Key)
	if err != nil {
		return err
	}
	config.Certificates = []tls.Certificate{cert}
	return nil
}
