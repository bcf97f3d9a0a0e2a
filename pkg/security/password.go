package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrHashingFailed    = errors.New("passcode hashing failed")
	ErrPasscodeTooShort = errors.New("passcode too short")
	ErrMismatch         = errors.New("passcode mismatch")
	MinPasscodeLen      = 6
)

// PasscodeHasher provides interface for passcode operations
type PasscodeHasher interface {
	Hash(passcode string) (string, error)
	Compare(hashed, passcode string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a new hasher using bcrypt
func NewBcryptHasher(cost int) PasscodeHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(passcode string) (string, error) {
	if len(passcode) < MinPasscodeLen {
		return "", ErrPasscodeTooShort
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(passcode), b.cost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(bytes), nil
}

func (b *bcryptHasher) Compare(hashed, passcode string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(passcode)); err != nil {
		return ErrMismatch
	}
	return nil
}
