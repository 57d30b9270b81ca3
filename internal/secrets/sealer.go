package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/hkdf"
)

// Sealer obfuscates values kept in the local store with AES-GCM.
// Not a replacement for OS keychains but avoids a plain-text token on disk.
type Sealer struct {
	key []byte
}

const keyInfo = "unimarket local store v1"

// DefaultIdentity binds sealed values to the current OS user.
func DefaultIdentity() string {
	return fmt.Sprintf("unimarket-%s-%s", runtime.GOOS, os.Getenv("USER"))
}

// NewSealer derives the sealing key from identity.
func NewSealer(identity string) (*Sealer, error) {
	if identity == "" {
		return nil, errors.New("secrets: identity required")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(identity), nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Wrap(err, "secrets: derive key")
	}
	return &Sealer{key: key}, nil
}

// SealString encrypts plain and returns it base64 encoded.
func (s *Sealer) SealString(plain string) (string, error) {
	ct, err := s.seal([]byte(plain))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// OpenString reverses SealString.
func (s *Sealer) OpenString(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.Wrap(err, "secrets: decode")
	}
	pt, err := s.open(raw)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func (s *Sealer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *Sealer) seal(plain []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func (s *Sealer) open(ciphertext []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("secrets: ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	body := ciphertext[gcm.NonceSize():]
	pt, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, errors.Wrap(err, "secrets: open")
	}
	return pt, nil
}
