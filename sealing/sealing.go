package sealing

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/spacemeshos/powgate/shared"
	"github.com/spacemeshos/powgate/telemetry"
)

const (
	NonceSize = 12
	TagSize   = 16
)

// SealedPayload is an AES-GCM sealed trajectory. Ciphertext carries the tag in its last TagSize bytes.
type SealedPayload struct {
	Key        []byte
	Nonce      []byte
	Ciphertext []byte
}

// EncodedPayload is the base64 text form of a SealedPayload used for transport.
type EncodedPayload struct {
	Key           string `json:"key"`
	Nonce         string `json:"nonce"`
	EncryptedData string `json:"encrypted_data"`
}

func (p *SealedPayload) Encode() EncodedPayload {
	return EncodedPayload{
		Key:           base64.StdEncoding.EncodeToString(p.Key),
		Nonce:         base64.StdEncoding.EncodeToString(p.Nonce),
		EncryptedData: base64.StdEncoding.EncodeToString(p.Ciphertext),
	}
}

func Decode(e EncodedPayload) (*SealedPayload, error) {
	key, err := DecodeKey(e.Key)
	if err != nil {
		return nil, err
	}
	nonce, err := DecodeNonce(e.Nonce)
	if err != nil {
		return nil, err
	}
	ct, err := base64.StdEncoding.DecodeString(e.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	return &SealedPayload{Key: key, Nonce: nonce, Ciphertext: ct}, nil
}

// DecodeKey decodes base64 key material and checks it is a valid AES key size.
func DecodeKey(keyB64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, shared.KeyFormatError{Err: err}
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

func DecodeNonce(nonceB64 string) ([]byte, error) {
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return nil, shared.NonceFormatError{Err: err}
	}
	if len(nonce) != NonceSize {
		return nil, shared.NonceFormatError{Length: len(nonce)}
	}
	return nonce, nil
}

type sealOptions struct {
	nonce         []byte
	random        io.Reader
	canonicalizer Canonicalizer
	box           *telemetry.Box
}

type SealOption func(*sealOptions)

// WithNonce seals under the given nonce instead of a fresh random one.
// Reusing a nonce with the same key breaks AES-GCM; this exists for reproducible payloads.
func WithNonce(nonce []byte) SealOption {
	return func(o *sealOptions) {
		o.nonce = nonce
	}
}

// WithRandom replaces crypto/rand as the nonce source.
func WithRandom(r io.Reader) SealOption {
	return func(o *sealOptions) {
		o.random = r
	}
}

func WithCanonicalizer(c Canonicalizer) SealOption {
	return func(o *sealOptions) {
		o.canonicalizer = c
	}
}

// WithValidation rejects trajectories that are unordered or leave box.
func WithValidation(box telemetry.Box) SealOption {
	return func(o *sealOptions) {
		o.box = &box
	}
}

// Seal canonicalizes tr and encrypts it with AES-GCM under key.
func Seal(tr telemetry.Trajectory, key []byte, opts ...SealOption) (*SealedPayload, error) {
	options := sealOptions{
		random:        rand.Reader,
		canonicalizer: JSON{},
	}
	for _, opt := range opts {
		opt(&options)
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if options.box != nil {
		if err := tr.Validate(*options.box); err != nil {
			return nil, shared.EncodingError{Format: options.canonicalizer.Name(), Err: err}
		}
	}

	plaintext, err := options.canonicalizer.Marshal(tr)
	if err != nil {
		return nil, err
	}

	nonce := options.nonce
	switch {
	case nonce == nil:
		nonce = make([]byte, NonceSize)
		if _, err := io.ReadFull(options.random, nonce); err != nil {
			return nil, fmt.Errorf("failed to generate nonce: %w", err)
		}
	case len(nonce) != NonceSize:
		return nil, shared.NonceFormatError{Length: len(nonce)}
	default:
		nonce = append([]byte(nil), nonce...)
	}

	return &SealedPayload{
		Key:        append([]byte(nil), key...),
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// SealB64 is Seal for base64 key material as handed out by a gate. An empty nonceB64 draws a fresh nonce.
func SealB64(tr telemetry.Trajectory, keyB64, nonceB64 string, opts ...SealOption) (*SealedPayload, error) {
	key, err := DecodeKey(keyB64)
	if err != nil {
		return nil, err
	}
	if nonceB64 != "" {
		nonce, err := DecodeNonce(nonceB64)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithNonce(nonce))
	}
	return Seal(tr, key, opts...)
}

// Unseal authenticates and decrypts p with key, returning the canonical plaintext.
// Any tag mismatch yields shared.ErrAuthentication and no plaintext.
func Unseal(p *SealedPayload, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(p.Nonce) != NonceSize {
		return nil, shared.NonceFormatError{Length: len(p.Nonce)}
	}
	if len(p.Ciphertext) < TagSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than tag", shared.ErrAuthentication)
	}

	plaintext, err := aead.Open(nil, p.Nonce, p.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthentication, err)
	}
	return plaintext, nil
}

// Open unseals p and decodes the plaintext with c.
func Open(p *SealedPayload, key []byte, c Canonicalizer) (telemetry.Trajectory, error) {
	plaintext, err := Unseal(p, key)
	if err != nil {
		return nil, err
	}
	return c.Unmarshal(plaintext)
}

func validateKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32:
		return nil
	default:
		return shared.KeyFormatError{Length: len(key)}
	}
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, shared.KeyFormatError{Length: len(key), Err: err}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return aead, nil
}
