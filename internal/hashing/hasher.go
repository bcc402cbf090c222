package hashing

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"social-service/internal/config"

	"golang.org/x/crypto/argon2"
)

const algorithm = "argon2id-v1"

var (
	ErrInvalidHash     = errors.New("invalid hash format")
	ErrPepperNotFound  = errors.New("pepper version not found")
	ErrUnsupportedAlgo = errors.New("unsupported hash algorithm")
)

// Purposes keep a hash of one kind from verifying as another.
const (
	PurposePassword = "password"
	PurposeOTP      = "otp"
)

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Pepper struct {
	Value   string
	Version int
}

type Hasher struct {
	params        Argon2Params
	currentPepper Pepper
	oldPeppers    []Pepper
	mu            sync.RWMutex
}

type HashResult struct {
	Hash          string
	Salt          string
	PepperVersion int
	Algorithm     string
}

// Encode renders the result as algorithm$pepperVersion$salt$hash.
func (r *HashResult) Encode() string {
	return strings.Join([]string{r.Algorithm, strconv.Itoa(r.PepperVersion), r.Salt, r.Hash}, "$")
}

func ParseHash(encoded string) (*HashResult, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 {
		return nil, ErrInvalidHash
	}
	if parts[0] != algorithm {
		return nil, ErrUnsupportedAlgo
	}
	version, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, ErrInvalidHash
	}
	return &HashResult{
		Algorithm:     parts[0],
		PepperVersion: version,
		Salt:          parts[2],
		Hash:          parts[3],
	}, nil
}

// NewHasher builds a hasher from config. Previous peppers are numbered
// downwards from the current version so older hashes keep verifying.
func NewHasher(cfg config.HashingConfig) *Hasher {
	h := &Hasher{
		params: Argon2Params{
			Memory:      uint32(cfg.Argon2MemoryCost),
			Iterations:  uint32(cfg.Argon2TimeCost),
			Parallelism: uint8(cfg.Argon2Parallelism),
			SaltLength:  16,
			KeyLength:   32,
		},
		currentPepper: Pepper{Value: cfg.Pepper, Version: cfg.PepperVersion},
	}
	for i, p := range cfg.PreviousPeppers {
		h.oldPeppers = append(h.oldPeppers, Pepper{Value: p, Version: cfg.PepperVersion - 1 - i})
	}
	return h
}

// Rotate makes pepper current and keeps the previous one for verification.
func (h *Hasher) Rotate(pepper string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.oldPeppers = append([]Pepper{h.currentPepper}, h.oldPeppers...)
	if len(h.oldPeppers) > 2 {
		h.oldPeppers = h.oldPeppers[:2]
	}
	h.currentPepper = Pepper{Value: pepper, Version: h.currentPepper.Version + 1}
	return h.currentPepper.Version
}

func (h *Hasher) HashPassword(password string) (string, error) {
	return h.hashEncoded(password, PurposePassword)
}

func (h *Hasher) VerifyPassword(password, encoded string) (bool, error) {
	return h.verifyEncoded(password, encoded, PurposePassword)
}

func (h *Hasher) HashOTP(otp string) (string, error) {
	return h.hashEncoded(otp, PurposeOTP)
}

func (h *Hasher) VerifyOTP(otp, encoded string) (bool, error) {
	return h.verifyEncoded(otp, encoded, PurposeOTP)
}

func (h *Hasher) hashEncoded(data, purpose string) (string, error) {
	res, err := h.hashWithPepper(data, purpose)
	if err != nil {
		return "", err
	}
	return res.Encode(), nil
}

func (h *Hasher) verifyEncoded(data, encoded, purpose string) (bool, error) {
	res, err := ParseHash(encoded)
	if err != nil {
		return false, err
	}
	return h.verifyWithPepper(data, res, purpose)
}

func (h *Hasher) hashWithPepper(data, purpose string) (*HashResult, error) {
	h.mu.RLock()
	pepper := h.currentPepper
	h.mu.RUnlock()

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey(
		[]byte(data+pepper.Value+purpose),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return &HashResult{
		Hash:          base64.RawURLEncoding.EncodeToString(hash),
		Salt:          base64.RawURLEncoding.EncodeToString(salt),
		PepperVersion: pepper.Version,
		Algorithm:     algorithm,
	}, nil
}

func (h *Hasher) verifyWithPepper(data string, res *HashResult, purpose string) (bool, error) {
	pepper, err := h.getPepper(res.PepperVersion)
	if err != nil {
		return false, err
	}

	salt, err := base64.RawURLEncoding.DecodeString(res.Salt)
	if err != nil {
		return false, ErrInvalidHash
	}
	expected, err := base64.RawURLEncoding.DecodeString(res.Hash)
	if err != nil {
		return false, ErrInvalidHash
	}

	computed := argon2.IDKey(
		[]byte(data+pepper+purpose),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		uint32(len(expected)),
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func (h *Hasher) getPepper(version int) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.currentPepper.Version == version {
		return h.currentPepper.Value, nil
	}
	for _, p := range h.oldPeppers {
		if p.Version == version {
			return p.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %d", ErrPepperNotFound, version)
}
