package store

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealPrefix = "sb1:"

// Sealer encrypts credential strings at rest with NaCl secretbox.
// A nil *Sealer stores values in the clear.
type Sealer struct {
	key [32]byte
}

// NewSealer builds a sealer from a base64 encoded 32-byte key. An empty key
// returns a nil sealer.
func NewSealer(keyB64 string) (*Sealer, error) {
	keyB64 = strings.TrimSpace(keyB64)
	if keyB64 == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("decode seal key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("seal key must decode to 32 bytes, got %d", len(raw))
	}
	s := &Sealer{}
	copy(s.key[:], raw)
	return s, nil
}

// Seal encrypts plain. Empty strings stay empty.
func (s *Sealer) Seal(plain string) (string, error) {
	if s == nil || plain == "" {
		return plain, nil
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return sealPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal. Unsealed values pass through so a
// key can be introduced on an existing store.
func (s *Sealer) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealPrefix) {
		return sealed, nil
	}
	if s == nil {
		return "", errors.New("sealed credential but no seal key configured")
	}
	box, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed credential: %w", err)
	}
	if len(box) < 24+secretbox.Overhead {
		return "", errors.New("sealed credential too short")
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return "", errors.New("sealed credential failed authentication")
	}
	return string(plain), nil
}

func (s *Sealer) sealRecord(rec TokenRecord) (TokenRecord, error) {
	var err error
	if rec.AccessToken, err = s.Seal(rec.AccessToken); err != nil {
		return rec, err
	}
	if rec.RefreshToken, err = s.Seal(rec.RefreshToken); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *Sealer) openRecord(rec TokenRecord) (TokenRecord, error) {
	var err error
	if rec.AccessToken, err = s.Open(rec.AccessToken); err != nil {
		return rec, err
	}
	if rec.RefreshToken, err = s.Open(rec.RefreshToken); err != nil {
		return rec, err
	}
	return rec, nil
}
