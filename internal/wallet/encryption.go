package wallet

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// saltSize is the length in bytes of the random Argon2id salt generated
// per keystore.
const saltSize = 32

// headerSize is the length of the plaintext header Encrypt prepends to
// the ciphertext: salt(32) | memory(4) | iterations(4) | parallelism(1).
// The KDF parameters travel with the ciphertext so a keystore written
// under one config.KDFConfig still opens correctly after an operator
// tunes kdf.memory_kib / kdf.iterations on a later run.
const headerSize = saltSize + 4 + 4 + 1

// EncryptionParams are the Argon2id cost parameters a keystore uses to
// turn a password into an encryption key. config.KDFConfig is the
// operator-facing source of these; RecommendedParams supplies the
// fallback when no config is available (e.g. in tests).
type EncryptionParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// RecommendedParams returns the Argon2id cost parameters walletchain
// ships as its default kdf.* config values (see config.DefaultMainnet).
func RecommendedParams() EncryptionParams {
	return EncryptionParams{
		Memory:      64 * 1024, // 64 MiB
		Iterations:  3,
		Parallelism: 4,
	}
}

func deriveKey(password, salt []byte, params EncryptionParams) []byte {
	return argon2.IDKey(
		password,
		salt,
		params.Iterations,
		params.Memory,
		params.Parallelism,
		chacha20poly1305.KeySize,
	)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Encrypt seals data under a key Argon2id derives from password and a
// fresh random salt, using XChaCha20-Poly1305. The returned blob is
// self-describing: salt, KDF params, and nonce all precede the
// ciphertext, so Decrypt needs only the password to open it.
func Encrypt(data, password []byte, params EncryptionParams) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: generate keystore salt: %w", err)
	}

	key := deriveKey(password, salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: init keystore cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: generate keystore nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, data, nil)

	out := make([]byte, 0, headerSize+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = binary.LittleEndian.AppendUint32(out, params.Memory)
	out = binary.LittleEndian.AppendUint32(out, params.Iterations)
	out = append(out, params.Parallelism)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt opens a blob Encrypt produced, re-deriving the key from the
// password using the KDF params stored in the blob's own header.
func Decrypt(encrypted, password []byte) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSizeX
	minSize := headerSize + nonceSize + chacha20poly1305.Overhead
	if len(encrypted) < minSize {
		return nil, fmt.Errorf("wallet: keystore blob too short: %d bytes, need at least %d", len(encrypted), minSize)
	}

	salt := encrypted[:saltSize]
	params := EncryptionParams{
		Memory:      binary.LittleEndian.Uint32(encrypted[saltSize:]),
		Iterations:  binary.LittleEndian.Uint32(encrypted[saltSize+4:]),
		Parallelism: encrypted[saltSize+8],
	}
	nonce := encrypted[headerSize : headerSize+nonceSize]
	ciphertext := encrypted[headerSize+nonceSize:]

	key := deriveKey(password, salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: init keystore cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("wallet: keystore decrypt failed (wrong password or corrupt file): %w", err)
	}
	return plaintext, nil
}
