package receipts

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// KeyManager holds the ECDSA P-256 key settlement receipts are signed with.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// NewKeyManager creates a KeyManager with a fresh key pair.
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return &KeyManager{privateKey: privateKey, PublicKey: &privateKey.PublicKey}, nil
}

// LoadKeyManager reads a PEM encoded EC private key from path. A missing file is an error, so a
// service never silently signs with a throwaway key.
func LoadKeyManager(path string) (*KeyManager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "EC PRIVATE KEY" {
		return nil, fmt.Errorf("signing key %s: no EC PRIVATE KEY block", path)
	}
	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	if privateKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key %s: curve %s, want P-256", path, privateKey.Curve.Params().Name)
	}
	return &KeyManager{privateKey: privateKey, PublicKey: &privateKey.PublicKey}, nil
}

// PrivateKeyPEM returns the private key in PEM format, for provisioning a key file.
func (km *KeyManager) PrivateKeyPEM() (string, error) {
	der, err := x509.MarshalECPrivateKey(km.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})), nil
}

// PublicKeyPEM returns the public key in PEM format.
func (km *KeyManager) PublicKeyPEM() (string, error) {
	return publicKeyToPEM(km.PublicKey)
}

func publicKeyToPEM(publicKey *ecdsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// ParsePublicKeyPEM parses a PEM encoded P-256 public key.
func ParsePublicKeyPEM(s string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("no PUBLIC KEY block")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	ecKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not ECDSA")
	}
	if ecKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("public key curve %s, want P-256", ecKey.Curve.Params().Name)
	}
	return ecKey, nil
}
