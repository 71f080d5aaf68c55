// Package encryption protects exported vault snapshots with a
// passphrase.
package encryption

import (
	"fmt"
	"io"

	"filippo.io/age"

	"studio-go/internal/studio"
)

// AgeEncryptor implements studio.Encryptor using age's scrypt-based
// passphrase encryption. No key files are involved; the passphrase is
// supplied per operation.
type AgeEncryptor struct{}

var _ studio.Encryptor = (*AgeEncryptor)(nil)

func NewAgeEncryptor() *AgeEncryptor {
	return &AgeEncryptor{}
}

// Encrypt returns a writer that age-encrypts everything written to it
// into dst. The caller must Close the writer to finalize the stream.
func (e *AgeEncryptor) Encrypt(dst io.Writer, passphrase string) (io.WriteCloser, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}

	w, err := age.Encrypt(dst, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	return w, nil
}

// Decrypt returns a reader yielding the plaintext of the age stream in
// src. A wrong passphrase surfaces as an error here.
func (e *AgeEncryptor) Decrypt(src io.Reader, passphrase string) (io.Reader, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(src, identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting data: %w", err)
	}
	return r, nil
}
