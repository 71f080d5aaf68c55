package encryption

import (
	"fmt"
	"io"

	"studio-go/internal/config"
	"studio-go/internal/studio"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (studio.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(), nil
	case "none":
		return NoneEncryptor{}, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}

// NoneEncryptor passes data through unchanged.
type NoneEncryptor struct{}

var _ studio.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Encrypt(dst io.Writer, passphrase string) (io.WriteCloser, error) {
	return nopWriteCloser{dst}, nil
}

func (NoneEncryptor) Decrypt(src io.Reader, passphrase string) (io.Reader, error) {
	return src, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
