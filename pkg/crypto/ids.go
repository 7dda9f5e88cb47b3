package crypto

import (
	"crypto/rand"
	"errors"
	"math"
)

const (
	idAlphabet      string = "0123456789abcdefghijklmnopqrstuvwxyz"
	defaultIDLength int    = 12
	minAlphabetSize int    = 8
	maxAlphabetSize int    = 255
)

var (
	ErrAlphabetTooShort = errors.New("alphabet must contain at least 8 characters")
	ErrAlphabetTooLong  = errors.New("alphabet must contain no more than 255 characters")
	ErrAlphabetNotASCII = errors.New("alphabet must contain only ASCII characters")
)

// IDGenerator produces nanoid-style record ids such as "blog-k3v9x0q2m1za".
type IDGenerator struct {
	alphabet string
	mask     byte
	length   int
}

// NewIDGenerator validates alphabet; empty selects lowercase alphanumerics.
func NewIDGenerator(alphabet string, length int) (*IDGenerator, error) {
	if alphabet == "" {
		alphabet = idAlphabet
	}
	if length <= 0 {
		length = defaultIDLength
	}

	// New indexes the alphabet by byte
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] > 127 {
			return nil, ErrAlphabetNotASCII
		}
	}
	if len(alphabet) < minAlphabetSize {
		return nil, ErrAlphabetTooShort
	}
	if len(alphabet) > maxAlphabetSize {
		return nil, ErrAlphabetTooLong
	}

	return &IDGenerator{alphabet: alphabet, mask: maskFor(len(alphabet)), length: length}, nil
}

// MustIDGenerator is NewIDGenerator for the default alphabet.
func MustIDGenerator() *IDGenerator {
	g, err := NewIDGenerator("", 0)
	if err != nil {
		panic(err)
	}
	return g
}

// maskFor returns the smallest 2^n-1 covering every alphabet index.
func maskFor(size int) byte {
	mask := 1
	for mask < size-1 {
		mask = mask<<1 | 1
	}
	return byte(mask)
}

// New returns prefix + "-" + a random id, or just the id when prefix is empty.
func (g *IDGenerator) New(prefix string) (string, error) {
	step := int(math.Ceil(1.6 * float64(int(g.mask)*g.length) / float64(len(g.alphabet))))

	id := make([]byte, 0, g.length)
	buf := make([]byte, step)
	for len(id) < g.length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		// Rejection sampling keeps the distribution uniform
		for _, b := range buf {
			if idx := int(b & g.mask); idx < len(g.alphabet) {
				id = append(id, g.alphabet[idx])
				if len(id) == g.length {
					break
				}
			}
		}
	}

	if prefix == "" {
		return string(id), nil
	}
	return prefix + "-" + string(id), nil
}
