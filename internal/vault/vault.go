// Package vault encrypts and decrypts custodial private keys with
// AES-256-GCM. Every encryption call generates its own random nonce; nonce
// reuse under one key breaks GCM confidentiality, so callers can never
// supply one.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	werr "github.com/ggonzalez94/walletd/internal/errors"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// NonceSize is 128 bits, matching the stored record layout.
	NonceSize = 16
	// TagSize is the GCM integrity tag length.
	TagSize = 16
)

// devKeySeed feeds the development-only key derivation. Records encrypted
// under it are readable by anyone with this source code.
const devKeySeed = "walletd-dev-only-encryption-key-do-not-use-in-production"

// Sealed is one encrypted record: ciphertext, nonce, and integrity tag held
// separately so the triple can be stored as-is.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// Vault seals and opens key material under a single AES-256 key.
type Vault struct {
	aead     cipher.AEAD
	insecure bool
}

// New builds a vault from a 32-byte secret.
func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, werr.Newf(werr.CodeUsage, "encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// NewInsecureDev builds a vault whose key is derived by hashing a fixed
// constant. It exists so development environments work without provisioning
// a secret; production wiring must refuse to construct it. The insecure
// path is this separate constructor, never a flag on New.
func NewInsecureDev() *Vault {
	aead, err := newAEAD(crypto.Keccak256([]byte(devKeySeed)))
	if err != nil {
		// Static parameters; only a broken runtime gets here.
		panic(err)
	}
	return &Vault{aead: aead, insecure: true}
}

// Insecure reports whether the vault runs on the development fallback key.
func (v *Vault) Insecure() bool { return v.insecure }

// Encrypt seals plaintext under a fresh random nonce.
func (v *Vault) Encrypt(plaintext []byte) (Sealed, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Sealed{}, werr.Wrap(werr.CodeInternal, "generate nonce", err)
	}

	sealed := v.aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize
	return Sealed{
		Ciphertext: sealed[:split],
		Nonce:      nonce,
		Tag:        sealed[split:],
	}, nil
}

// Decrypt opens a sealed record. Any corruption of ciphertext, nonce, or
// tag fails the integrity check; partial plaintext is never returned.
func (v *Vault) Decrypt(s Sealed) ([]byte, error) {
	if len(s.Nonce) != NonceSize || len(s.Tag) != TagSize {
		return nil, werr.New(werr.CodeIntegrity, "encrypted record is malformed")
	}
	combined := make([]byte, 0, len(s.Ciphertext)+len(s.Tag))
	combined = append(combined, s.Ciphertext...)
	combined = append(combined, s.Tag...)

	plaintext, err := v.aead.Open(nil, s.Nonce, combined, nil)
	if err != nil {
		return nil, werr.New(werr.CodeIntegrity, "ciphertext integrity check failed")
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, werr.Wrap(werr.CodeInternal, "create cipher", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, werr.Wrap(werr.CodeInternal, "create GCM", err)
	}
	return aead, nil
}
