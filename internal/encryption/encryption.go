// Package encryption implements the framed AES-256-GCM streaming format
// described in the system's data model.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/baktainer/baktainer/internal/domain"
)

const (
	keySize    = 32
	chunkSize  = 64 * 1024
	pbkdf2Iter = 100_000
)

const (
	defaultKeySalt    = "baktainer-default-salt"
	passphraseKeySalt = "baktainer-backup-encryption-salt"
)

// Cipher resolves key material and performs the encrypt/decrypt round
// trip for one configured key.
type Cipher struct {
	key []byte
}

// New resolves key material (raw 32 bytes, 64 hex chars, "base64:" prefix,
// or an arbitrary string fed through PBKDF2) into a Cipher.
func New(raw string, isPassphrase bool) (*Cipher, error) {
	key, err := resolveKey(raw, isPassphrase)
	if err != nil {
		return nil, domain.NewEncryptionError("failed to resolve encryption key", err)
	}
	return &Cipher{key: key}, nil
}

func resolveKey(raw string, isPassphrase bool) ([]byte, error) {
	if isPassphrase {
		return pbkdf2.Key([]byte(raw), []byte(passphraseKeySalt), pbkdf2Iter, keySize, sha256.New), nil
	}
	if len(raw) == keySize {
		return []byte(raw), nil
	}
	if len(raw) == keySize*2 {
		if decoded, err := hex.DecodeString(raw); err == nil && len(decoded) == keySize {
			return decoded, nil
		}
	}
	if after, ok := cutPrefix(raw, "base64:"); ok {
		decoded, err := base64.StdEncoding.DecodeString(after)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 key: %w", err)
		}
		if len(decoded) != keySize {
			return nil, fmt.Errorf("base64 key must decode to %d bytes, got %d", keySize, len(decoded))
		}
		return decoded, nil
	}
	return pbkdf2.Key([]byte(raw), []byte(defaultKeySalt), pbkdf2Iter, keySize, sha256.New), nil
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

// KeyFingerprint is the first 16 hex chars of sha256(key), for sidecar
// metadata.
func (c *Cipher) KeyFingerprint() string {
	sum := sha256.Sum256(c.key)
	return hex.EncodeToString(sum[:])[:16]
}

// EncryptFile encrypts srcPath into dstPath using the framed format, then
// securely overwrites and unlinks srcPath. On any failure the partial
// ciphertext at dstPath is removed.
func (c *Cipher) EncryptFile(srcPath, dstPath string) (originalSize, encryptedSize int64, err error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return 0, 0, domain.NewEncryptionError("failed to initialize cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return 0, 0, domain.NewEncryptionError("failed to initialize GCM", err)
	}

	iv := make([]byte, domain.EncryptionIVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return 0, 0, domain.NewEncryptionError("failed to generate IV", err)
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return 0, 0, domain.NewEncryptionError("failed to open plaintext", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, 0, domain.NewEncryptionError("failed to stat plaintext", err)
	}
	originalSize = info.Size()

	out, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return 0, 0, domain.NewEncryptionError("failed to create ciphertext output", err)
	}

	encErr := func() error {
		if err := writeHeader(out, iv); err != nil {
			return err
		}
		plaintext, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		// Seal appends the tag, satisfying the "last 16 bytes are the
		// tag" framing without a separate write.
		ciphertext := gcm.Seal(nil, iv, plaintext, nil)
		_, err = out.Write(ciphertext)
		return err
	}()

	syncErr := out.Sync()
	closeErr := out.Close()

	if encErr != nil || syncErr != nil || closeErr != nil {
		_ = os.Remove(dstPath)
		if encErr != nil {
			return 0, 0, domain.NewEncryptionError("failed to encrypt", encErr)
		}
		if syncErr != nil {
			return 0, 0, domain.NewEncryptionError("failed to sync ciphertext", syncErr)
		}
		return 0, 0, domain.NewEncryptionError("failed to close ciphertext", closeErr)
	}

	outInfo, err := os.Stat(dstPath)
	if err == nil {
		encryptedSize = outInfo.Size()
	}

	if err := secureDelete(srcPath, originalSize); err != nil {
		// best-effort: this package has no logger and the failure is not
		// reported to the caller, so the plaintext file may remain.
		_ = err
	}

	return originalSize, encryptedSize, nil
}

func writeHeader(w io.Writer, iv []byte) error {
	if _, err := w.Write([]byte(domain.EncryptionMagic)); err != nil {
		return err
	}
	if _, err := w.Write([]byte{domain.EncryptionVersion}); err != nil {
		return err
	}
	algo := []byte(domain.EncryptionAlgorithm)
	if _, err := w.Write([]byte{byte(len(algo))}); err != nil {
		return err
	}
	if _, err := w.Write(algo); err != nil {
		return err
	}
	_, err := w.Write(iv)
	return err
}

// secureDelete overwrites path with random bytes of the same size, fsyncs,
// then unlinks it. Best-effort: failures are returned for the caller to
// log, never escalated to a hard error.
func secureDelete(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	var written int64
	for written < size {
		n := int64(len(buf))
		if remaining := size - written; remaining < n {
			n = remaining
		}
		if _, err := rand.Read(buf[:n]); err != nil {
			return err
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return err
		}
		written += n
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// DecryptFile validates the header, verifies the authentication tag, and
// writes the recovered plaintext to dstPath. On tag-mismatch or any other
// failure, dstPath is removed and an *domain.EncryptionError is returned.
func (c *Cipher) DecryptFile(srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return domain.NewEncryptionError("failed to read ciphertext", err)
	}

	plaintext, err := c.Decrypt(data)
	if err != nil {
		_ = os.Remove(dstPath)
		return err
	}

	if err := os.WriteFile(dstPath, plaintext, 0600); err != nil {
		_ = os.Remove(dstPath)
		return domain.NewEncryptionError("failed to write plaintext", err)
	}
	return nil
}

// Decrypt validates the header and authentication tag in data and returns
// the plaintext.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	const headerFixed = 4 + 1 + 1 // magic + version + algo length
	if len(data) < headerFixed {
		return nil, domain.NewEncryptionError("ciphertext too short for header", nil)
	}
	if string(data[0:4]) != domain.EncryptionMagic {
		return nil, domain.NewEncryptionError("bad magic bytes", nil)
	}
	version := data[4]
	if version != domain.EncryptionVersion {
		return nil, domain.NewEncryptionError(fmt.Sprintf("unsupported version %d", version), nil)
	}
	algoLen := int(data[5])
	offset := 6 + algoLen
	if len(data) < offset {
		return nil, domain.NewEncryptionError("ciphertext too short for algorithm name", nil)
	}
	algo := string(data[6:offset])
	if algo != domain.EncryptionAlgorithm {
		return nil, domain.NewEncryptionError(fmt.Sprintf("unsupported algorithm %q", algo), nil)
	}

	if len(data) < offset+domain.EncryptionIVSize {
		return nil, domain.NewEncryptionError("ciphertext too short for IV", nil)
	}
	iv := data[offset : offset+domain.EncryptionIVSize]
	ciphertext := data[offset+domain.EncryptionIVSize:]
	if len(ciphertext) < domain.EncryptionTagSize {
		return nil, domain.NewEncryptionError("ciphertext too short for authentication tag", nil)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, domain.NewEncryptionError("failed to initialize cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, domain.NewEncryptionError("failed to initialize GCM", err)
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, domain.NewEncryptionError("authentication failed", err)
	}
	return plaintext, nil
}

// VerifyKey performs a round-trip encrypt/decrypt on a scratch payload to
// confirm the resolved key is usable.
func (c *Cipher) VerifyKey() error {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return domain.NewEncryptionError("key verification failed", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return domain.NewEncryptionError("key verification failed", err)
	}
	iv := make([]byte, domain.EncryptionIVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return domain.NewEncryptionError("key verification failed", err)
	}
	plaintext := []byte("baktainer-key-check")
	ciphertext := gcm.Seal(nil, iv, plaintext, nil)
	recovered, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return domain.NewEncryptionError("key verification round-trip failed", err)
	}
	if string(recovered) != string(plaintext) {
		return domain.NewEncryptionError("key verification round-trip mismatch", errors.New("payload mismatch"))
	}
	return nil
}
