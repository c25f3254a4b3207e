package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// KeyEnv holds the AES key used to protect saved passwords.
const KeyEnv = "SURVEY_ENC_KEY"

func keyBytes() ([]byte, error) {
	k := os.Getenv(KeyEnv)
	if len(k) == 0 {
		return nil, fmt.Errorf("%s not set", KeyEnv)
	}
	b := []byte(k)
	if l := len(b); l != 16 && l != 24 && l != 32 {
		return nil, fmt.Errorf("invalid key length %d", l)
	}
	return b, nil
}

// CheckEnv reports whether a usable key is configured.
func CheckEnv() error {
	_, err := keyBytes()
	return err
}

// Enabled is true when CheckEnv succeeds.
func Enabled() bool { return CheckEnv() == nil }

func newGCM() (cipher.AEAD, error) {
	key, err := keyBytes()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plain with AES-GCM. The nonce is prepended to the result.
func Encrypt(plain []byte) ([]byte, error) {
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

// Decrypt opens a value produced by Encrypt.
func Decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ct, nil)
}

// EncryptString encrypts s and encodes it for storage in a text file.
func EncryptString(s string) (string, error) {
	b, err := Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecryptString reverses EncryptString.
func DecryptString(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	plain, err := Decrypt(b)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
