package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

const (
	secureDocVersion = 2
	lockTimeout      = 5 * time.Second
	keyLen           = 32
)

// Argon2id parameters for new documents (RFC 9106 second recommendation).
var defaultKDF = kdfParams{Time: 3, Memory: 64 * 1024, Threads: 4}

type kdfParams struct {
	Time    uint32 `yaml:"time"`
	Memory  uint32 `yaml:"memory_kib"`
	Threads uint8  `yaml:"threads"`
}

// defaultPassphrase keeps values obfuscated at rest when no passphrase is configured.
const defaultPassphrase = "catalog-browser-local"

// SecureFileStore is a single YAML document mapping keys to AES-256-GCM
// ciphertexts. The key is derived with Argon2id from a passphrase and a
// per-document salt.
type SecureFileStore struct {
	path       string
	passphrase []byte
	logger     *zap.Logger

	mu        sync.Mutex
	keySource string
	key       []byte
}

type secureDocument struct {
	Version int               `yaml:"version"`
	Salt    string            `yaml:"salt"`
	KDF     kdfParams         `yaml:"kdf"`
	Entries map[string]string `yaml:"entries"`
}

// NewSecureFileStore opens (or lazily creates) the document at path.
func NewSecureFileStore(path, passphrase string, logger *zap.Logger) (*SecureFileStore, error) {
	if path == "" {
		return nil, errors.New("securefile: path is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if passphrase == "" {
		logger.Warn("No storage passphrase configured, using built-in key")
		passphrase = defaultPassphrase
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("securefile: create dir: %w", err)
	}
	return &SecureFileStore{
		path:       path,
		passphrase: []byte(passphrase),
		logger:     logger,
	}, nil
}

func (s *SecureFileStore) Get(_ context.Context, key string, dst any) error {
	var plaintext []byte
	err := WithLock(s.path, "get", lockTimeout, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		sealed, ok := doc.Entries[key]
		if !ok {
			return ErrNotFound
		}
		plaintext, err = s.open(doc, sealed)
		return err
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, dst); err != nil {
		return fmt.Errorf("securefile: decode %s: %w", key, err)
	}
	return nil
}

func (s *SecureFileStore) Set(_ context.Context, key string, value any) error {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("securefile: encode %s: %w", key, err)
	}
	return WithLock(s.path, "set", lockTimeout, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		sealed, err := s.seal(doc, plaintext)
		if err != nil {
			return err
		}
		doc.Entries[key] = sealed
		return s.save(doc)
	})
}

func (s *SecureFileStore) Has(_ context.Context, key string) (bool, error) {
	var found bool
	err := WithLock(s.path, "has", lockTimeout, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		_, found = doc.Entries[key]
		return nil
	})
	return found, err
}

func (s *SecureFileStore) Delete(_ context.Context, key string) error {
	return WithLock(s.path, "delete", lockTimeout, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		if _, ok := doc.Entries[key]; !ok {
			return nil
		}
		delete(doc.Entries, key)
		return s.save(doc)
	})
}

// Clear drops every entry; the salt is kept so the document stays readable.
func (s *SecureFileStore) Clear(_ context.Context) error {
	return WithLock(s.path, "clear", lockTimeout, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		doc.Entries = make(map[string]string)
		return s.save(doc)
	})
}

func (s *SecureFileStore) Close() error { return nil }

// load reads the document, creating an empty one with a fresh salt if missing.
func (s *SecureFileStore) load() (*secureDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		salt := make([]byte, 16)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("securefile: generate salt: %w", err)
		}
		return &secureDocument{
			Version: secureDocVersion,
			Salt:    base64.StdEncoding.EncodeToString(salt),
			KDF:     defaultKDF,
			Entries: make(map[string]string),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("securefile: read: %w", err)
	}

	var doc secureDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("securefile: parse: %w", err)
	}
	if doc.Version != secureDocVersion {
		return nil, fmt.Errorf("securefile: unsupported version %d", doc.Version)
	}
	if doc.KDF.Time == 0 || doc.KDF.Memory == 0 || doc.KDF.Threads == 0 {
		return nil, errors.New("securefile: missing kdf parameters")
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]string)
	}
	return &doc, nil
}

// save writes the document atomically via a temp file and rename.
func (s *SecureFileStore) save(doc *secureDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("securefile: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("securefile: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("securefile: rename: %w", err)
	}
	return nil
}

// deriveKey runs Argon2id once per salt and parameter set.
func (s *SecureFileStore) deriveKey(doc *secureDocument) ([]byte, error) {
	source := fmt.Sprintf("%s/%d/%d/%d", doc.Salt, doc.KDF.Time, doc.KDF.Memory, doc.KDF.Threads)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil && s.keySource == source {
		return s.key, nil
	}

	salt, err := base64.StdEncoding.DecodeString(doc.Salt)
	if err != nil {
		return nil, fmt.Errorf("securefile: decode salt: %w", err)
	}
	s.key = argon2.IDKey(s.passphrase, salt, doc.KDF.Time, doc.KDF.Memory, doc.KDF.Threads, keyLen)
	s.keySource = source
	return s.key, nil
}

func (s *SecureFileStore) aead(doc *secureDocument) (cipher.AEAD, error) {
	key, err := s.deriveKey(doc)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("securefile: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func (s *SecureFileStore) seal(doc *secureDocument, plaintext []byte) (string, error) {
	gcm, err := s.aead(doc)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("securefile: nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plaintext, nil)), nil
}

func (s *SecureFileStore) open(doc *secureDocument, sealed string) ([]byte, error) {
	gcm, err := s.aead(doc)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("securefile: decode ciphertext: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("securefile: ciphertext too short")
	}
	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("securefile: decrypt: %w", err)
	}
	return plaintext, nil
}
