// Package generator produces random passwords from letters, digits and
// symbols using crypto/rand.
package generator

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	MinLength     = 8
	MaxLength     = 24
	DefaultLength = 16

	Letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Numbers = "0123456789"
	Special = "!@#$%^&*()-_=+[]{};:,.?/"
)

var (
	ErrLength        = fmt.Errorf("password length must be between %d and %d", MinLength, MaxLength)
	ErrTooFewClasses = errors.New("choose at least two character classes")
)

// Options selects the character classes a password draws from
type Options struct {
	Letters bool
	Numbers bool
	Special bool
}

// DefaultOptions enables every class
func DefaultOptions() Options {
	return Options{Letters: true, Numbers: true, Special: true}
}

func (o Options) classes() []string {
	var classes []string
	if o.Letters {
		classes = append(classes, Letters)
	}
	if o.Numbers {
		classes = append(classes, Numbers)
	}
	if o.Special {
		classes = append(classes, Special)
	}
	return classes
}

// Password returns a random password of length characters. Every chosen class
// appears at least once.
func Password(length int, opts Options) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", ErrLength
	}
	classes := opts.classes()
	if len(classes) < 2 {
		return "", ErrTooFewClasses
	}

	var pool string
	out := make([]byte, 0, length)
	for _, class := range classes {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
		pool += class
	}
	for len(out) < length {
		c, err := pick(pool)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	if err := shuffle(out); err != nil {
		return "", err
	}
	return string(out), nil
}

func randIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random data: %w", err)
	}
	return int(v.Int64()), nil
}

func pick(set string) (byte, error) {
	i, err := randIntn(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

// shuffle is a Fisher-Yates shuffle
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randIntn(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
