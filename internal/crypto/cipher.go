package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/iudanet/supwarden/internal/common"
)

const (
	// KeySize - размер ключа AES-256
	KeySize = 32
	// IVSize - размер IV для CBC (один блок AES)
	IVSize = aes.BlockSize

	versionPrefix = "v"
	versionSep    = "$"
)

// FieldCipher шифрует поле password элементов.
// Формат: hex(iv):hex(ciphertext), для версии ключа > 0 с префиксом v<N>$.
type FieldCipher struct {
	keys    map[int][]byte
	current int
}

// NewFieldCipher создает шифр из набора ключей. current - версия для шифрования.
func NewFieldCipher(current int, keys map[int][]byte) (*FieldCipher, error) {
	if current < 0 {
		return nil, fmt.Errorf("key version must not be negative, got %d", current)
	}
	if _, ok := keys[current]; !ok {
		return nil, fmt.Errorf("no key for current version %d", current)
	}

	copied := make(map[int][]byte, len(keys))
	for version, key := range keys {
		if len(key) != KeySize {
			return nil, fmt.Errorf("encryption key v%d must be %d bytes, got %d", version, KeySize, len(key))
		}
		copied[version] = bytes.Clone(key)
	}

	return &FieldCipher{keys: copied, current: current}, nil
}

// ParseHexKey декодирует hex ключ и проверяет его длину
func ParseHexKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// CurrentVersion returns the key version used by Encrypt.
func (c *FieldCipher) CurrentVersion() int {
	return c.current
}

// Encrypt шифрует строку AES-256-CBC со свежим случайным IV
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.keys[c.current])
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	wire := hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext)
	if c.current > 0 {
		wire = versionPrefix + strconv.Itoa(c.current) + versionSep + wire
	}
	return wire, nil
}

// Decrypt расшифровывает строку в wire-формате.
// Любая ошибка формата, ключа или padding оборачивает common.ErrDecryption.
func (c *FieldCipher) Decrypt(wire string) (string, error) {
	version, iv, ciphertext, err := parseWire(wire)
	if err != nil {
		return "", err
	}

	key, ok := c.keys[version]
	if !ok {
		return "", fmt.Errorf("%w: unknown key version %d", common.ErrDecryption, version)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	return string(unpadded), nil
}

// IsWireFormat reports whether s is a well-formed FieldCipher output.
// It does not check that any configured key can decrypt it.
func IsWireFormat(s string) bool {
	_, _, _, err := parseWire(s)
	return err == nil
}

// parseWire разбирает [v<N>$]hex(iv):hex(ct)
func parseWire(wire string) (int, []byte, []byte, error) {
	version := 0
	rest := wire

	if strings.HasPrefix(rest, versionPrefix) {
		tag, body, ok := strings.Cut(rest[len(versionPrefix):], versionSep)
		if !ok {
			return 0, nil, nil, fmt.Errorf("%w: malformed key version tag", common.ErrDecryption)
		}
		v, err := strconv.Atoi(tag)
		if err != nil || v < 0 {
			return 0, nil, nil, fmt.Errorf("%w: malformed key version tag", common.ErrDecryption)
		}
		version = v
		rest = body
	}

	ivHex, ctHex, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, nil, nil, fmt.Errorf("%w: missing iv separator", common.ErrDecryption)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != IVSize {
		return 0, nil, nil, fmt.Errorf("%w: invalid iv", common.ErrDecryption)
	}

	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return 0, nil, nil, fmt.Errorf("%w: invalid ciphertext", common.ErrDecryption)
	}

	return version, iv, ciphertext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
