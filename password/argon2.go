package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassLength         = 8
	algorithmID           = "argon2id"
)

// Config holds argon2id cost parameters.
type Config struct {
	Memory      uint32 // KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns moderate interactive-login costs.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies account passwords in PHC string format.
type Hasher struct {
	config Config
}

// NewHasher validates cost parameters and returns a [Hasher].
func NewHasher(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("argon2 memory below minimum")
	case cfg.Time < 1:
		return nil, errors.New("argon2 time cost below minimum")
	case cfg.Parallelism < 1:
		return nil, errors.New("argon2 parallelism below minimum")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("argon2 salt length below minimum")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("argon2 key length below minimum")
	}
	return &Hasher{config: cfg}, nil
}

// Hash derives a PHC-encoded argon2id hash from password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPassLength {
		return "", fmt.Errorf("password must be at least %d bytes", minPassLength)
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt,
		h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the PHC-encoded hash. The
// comparison is constant-time.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	params, salt, key, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt,
		params.time, params.memory, params.parallelism, uint32(len(key)))

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

type phcParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func parsePHC(encoded string) (phcParams, []byte, []byte, error) {
	var params phcParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return params, nil, nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return params, nil, nil, errors.New("unsupported algorithm")
	}

	if !strings.HasPrefix(parts[2], "v=") {
		return params, nil, nil, errors.New("missing argon2 version")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return params, nil, nil, errors.New("unsupported argon2 version")
	}

	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return params, nil, nil, errors.New("invalid parameter entry")
		}
		n, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return params, nil, nil, errors.New("invalid parameter value")
		}
		switch kv[0] {
		case "m":
			params.memory = uint32(n)
		case "t":
			params.time = uint32(n)
		case "p":
			if n == 0 || n > 255 {
				return params, nil, nil, errors.New("invalid parallelism")
			}
			params.parallelism = uint8(n)
		default:
			return params, nil, nil, errors.New("unknown parameter")
		}
	}
	if params.memory == 0 || params.time == 0 || params.parallelism == 0 {
		return params, nil, nil, errors.New("incomplete parameters")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return params, nil, nil, errors.New("invalid salt")
	}
	key, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, errors.New("invalid hash")
	}

	return params, salt, key, nil
}
