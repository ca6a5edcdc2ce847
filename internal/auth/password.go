package auth

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // G505: verify-only for imported pbkdf2:sha1 hashes
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Argon2id parameters, OWASP 2025 recommendation.
const (
	argonTime    = 3         // iterations
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 1         // parallelism
	argonKeyLen  = 32        // output hash length
	argonSaltLen = 16        // salt length
)

// Werkzeug scrypt defaults, used when the method string omits parameters.
const (
	werkzeugScryptN      = 1 << 15
	werkzeugScryptR      = 8
	werkzeugScryptP      = 1
	werkzeugScryptKeyLen = 64
)

// errUnknownHashScheme is returned for stored hashes no verifier recognises.
var errUnknownHashScheme = errors.New("unrecognised password hash scheme")

// HashPassword hashes a plaintext password using Argon2id and returns it
// in PHC string format: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks a plaintext password against a stored hash.
//
// Argon2id PHC strings are the native format. Hashes imported from the
// previous deployment are also accepted: bcrypt ($2a$, $2b$, $2y$) and
// Werkzeug "pbkdf2:<alg>:<iter>$salt$hex" / "scrypt:<n>:<r>:<p>$salt$hex".
// All comparisons are constant-time.
func VerifyPassword(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return verifyBcrypt(password, encoded)
	case strings.HasPrefix(encoded, "pbkdf2:"), strings.HasPrefix(encoded, "scrypt:"):
		return verifyWerkzeug(password, encoded)
	default:
		return false, errUnknownHashScheme
	}
}

// NeedsRehash reports whether a stored hash should be replaced with a fresh
// Argon2id hash after the next successful login.
func NeedsRehash(encoded string) bool {
	_, key, params, err := decodePHC(encoded)
	if err != nil {
		return true
	}
	return params.time != argonTime ||
		params.memory != argonMemory ||
		params.threads != argonThreads ||
		len(key) != argonKeyLen
}

func verifyArgon2id(password, encoded string) (bool, error) {
	salt, key, params, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(key))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func verifyBcrypt(password, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("verifying bcrypt hash: %w", err)
	}
}

// verifyWerkzeug handles "method$salt$hexdigest" where the salt is used
// as its literal bytes.
func verifyWerkzeug(password, encoded string) (bool, error) {
	method, rest, ok := strings.Cut(encoded, "$")
	if !ok {
		return false, fmt.Errorf("invalid werkzeug hash format")
	}
	salt, digestHex, ok := strings.Cut(rest, "$")
	if !ok {
		return false, fmt.Errorf("invalid werkzeug hash format")
	}
	want, err := hex.DecodeString(digestHex)
	if err != nil {
		return false, fmt.Errorf("decoding werkzeug digest: %w", err)
	}

	args := strings.Split(method, ":")
	var got []byte

	switch args[0] {
	case "pbkdf2":
		got, err = werkzeugPBKDF2(password, salt, args[1:])
	case "scrypt":
		got, err = werkzeugScrypt(password, salt, args[1:])
	}
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func werkzeugPBKDF2(password, salt string, args []string) ([]byte, error) {
	if len(args) != 2 { //nolint:mnd // pbkdf2:<alg>:<iterations>
		return nil, fmt.Errorf("pbkdf2 hash must carry algorithm and iteration count")
	}

	var newHash func() hash.Hash
	switch args[0] {
	case "sha256":
		newHash = sha256.New
	case "sha512":
		newHash = sha512.New
	case "sha1":
		newHash = sha1.New
	default:
		return nil, fmt.Errorf("unsupported pbkdf2 digest: %s", args[0])
	}

	iterations, err := strconv.Atoi(args[1])
	if err != nil || iterations <= 0 {
		return nil, fmt.Errorf("invalid pbkdf2 iteration count %q", args[1])
	}

	return pbkdf2.Key([]byte(password), []byte(salt), iterations, newHash().Size(), newHash), nil
}

func werkzeugScrypt(password, salt string, args []string) ([]byte, error) {
	n, r, p := werkzeugScryptN, werkzeugScryptR, werkzeugScryptP
	if len(args) > 0 {
		if len(args) != 3 { //nolint:mnd // scrypt:<n>:<r>:<p>
			return nil, fmt.Errorf("scrypt hash must carry n, r and p")
		}
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil {
			return nil, fmt.Errorf("invalid scrypt n: %w", err)
		}
		if r, err = strconv.Atoi(args[1]); err != nil {
			return nil, fmt.Errorf("invalid scrypt r: %w", err)
		}
		if p, err = strconv.Atoi(args[2]); err != nil {
			return nil, fmt.Errorf("invalid scrypt p: %w", err)
		}
	}

	key, err := scrypt.Key([]byte(password), []byte(salt), n, r, p, werkzeugScryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving scrypt key: %w", err)
	}
	return key, nil
}

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// decodePHC parses an Argon2id PHC string into its components.
func decodePHC(encoded string) (salt, key []byte, params argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, fmt.Errorf("invalid PHC hash format")
	}

	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("unsupported argon2 version: %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("parsing parameters: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}

	return salt, key, params, nil
}
