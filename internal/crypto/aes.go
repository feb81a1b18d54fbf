package crypto

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
	"strings"
)

var (
	ErrKeyVersionNotFound = errors.New("key version not found")
	ErrKeySize            = errors.New("key must be 32 bytes")
)

func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Sealed é um valor cifrado com AES-256-GCM e a versão da chave usada.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	KeyVersion string
}

// Keyring guarda as chaves por versão; novas cifragens usam sempre a versão corrente,
// e a leitura aceita qualquer versão conhecida (rotação sem recifrar o legado).
type Keyring struct {
	keys    map[string][]byte
	current string
}

func NewKeyring(env, currentVersion string) (*Keyring, error) {
	keys, err := ParseKeysEnv(env)
	if err != nil {
		return nil, err
	}
	if currentVersion == "" {
		currentVersion = "v1"
	}
	if _, ok := keys[currentVersion]; !ok {
		return nil, fmt.Errorf("current key version %q: %w", currentVersion, ErrKeyVersionNotFound)
	}
	return &Keyring{keys: keys, current: currentVersion}, nil
}

func (k *Keyring) CurrentVersion() string { return k.current }

func (k *Keyring) Seal(plaintext []byte) (Sealed, error) {
	gcm, err := k.gcm(k.current)
	if err != nil {
		return Sealed{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Sealed{}, err
	}
	return Sealed{Ciphertext: gcm.Seal(nil, nonce, plaintext, nil), Nonce: nonce, KeyVersion: k.current}, nil
}

func (k *Keyring) Open(s Sealed) ([]byte, error) {
	gcm, err := k.gcm(s.KeyVersion)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, s.Nonce, s.Ciphertext, nil)
}

// OpenString devolve "" quando não há valor gravado ou quando a decifragem falha.
func (k *Keyring) OpenString(ciphertext, nonce []byte, keyVersion *string) *string {
	if keyVersion == nil || *keyVersion == "" || len(ciphertext) == 0 || len(nonce) == 0 {
		return nil
	}
	plain, err := k.Open(Sealed{Ciphertext: ciphertext, Nonce: nonce, KeyVersion: *keyVersion})
	if err != nil || len(plain) == 0 {
		return nil
	}
	s := string(plain)
	return &s
}

func (k *Keyring) gcm(version string) (cipher.AEAD, error) {
	key, ok := k.keys[version]
	if !ok {
		return nil, ErrKeyVersionNotFound
	}
	if len(key) != 32 {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// ParseKeysEnv lê "v1:<base64>,v2:<base64>" (32 bytes cada, com ou sem padding).
func ParseKeysEnv(env string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	if env == "" {
		return out, nil
	}
	for _, part := range strings.Split(env, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.Index(part, ":")
		if idx <= 0 {
			continue
		}
		ver := strings.TrimSpace(part[:idx])
		b64 := strings.TrimRight(strings.TrimSpace(part[idx+1:]), "=")
		key, err := base64.RawStdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", ver, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("key %s must be 32 bytes for AES-256 (got %d)", ver, len(key))
		}
		out[ver] = key
	}
	return out, nil
}
