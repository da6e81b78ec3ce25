package envelope

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keyLength = 32

// hkdfInfo binds derived keys to this envelope format so the same shared
// secret can be reused by other channels without key reuse.
const hkdfInfo = "sechat-envelope-v1"

// sealedEnvelope is the JSON document inside the base64 blob.
type sealedEnvelope struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

// Decryptor implements the decryption capability with AES-256-GCM over a
// key derived from a shared secret via HKDF-SHA256.
type Decryptor struct {
	key []byte
}

func NewDecryptor(sharedSecret string) (*Decryptor, error) {
	if sharedSecret == "" {
		return nil, fmt.Errorf("shared secret is required")
	}

	key := make([]byte, keyLength)
	kdf := hkdf.New(sha256.New, []byte(sharedSecret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive envelope key: %w", err)
	}
	return &Decryptor{key: key}, nil
}

// Decrypt opens a base64 envelope blob and returns the payload document.
func (d *Decryptor) Decrypt(_ context.Context, blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}

	var env sealedEnvelope
	if err = json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("parse envelope: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}

	aead, err := d.aead()
	if err != nil {
		return "", err
	}
	if len(nonce) != aead.NonceSize() {
		return "", fmt.Errorf("invalid nonce length: got %d want %d", len(nonce), aead.NonceSize())
	}

	payload, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt envelope: %w", err)
	}
	return string(payload), nil
}

// Seal wraps a payload document into a base64 envelope blob. It is the
// outgoing counterpart of Decrypt and is also what the codec tests build
// their fixtures with.
func (d *Decryptor) Seal(payload string) (string, error) {
	aead, err := d.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	env := sealedEnvelope{
		Ciphertext: base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, []byte(payload), nil)),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// SealText is a convenience for wrapping display text into the payload
// document expected by the codec.
func (d *Decryptor) SealText(text string) (string, error) {
	raw, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return d.Seal(string(raw))
}

func (d *Decryptor) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(d.key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}
