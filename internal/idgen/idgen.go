// Package idgen produces the opaque document identifiers handed out on upload.
package idgen

import "math/rand/v2"

const (
	// Length is the number of characters in every generated ID.
	Length = 20

	lowLimit  = '0' // 48
	highLimit = 'z' // 122
)

// Generate returns a fresh 20 character ID drawn uniformly from [0-9A-Za-z].
// Uniqueness is not guaranteed; callers that care must check for collisions.
func Generate() string {
	return generate(rand.IntN)
}

// generate samples code points in ['0','z'] and drops the punctuation gaps
// between '9' and 'A' and between 'Z' and 'a'. intn must be safe for the
// calling goroutine; the package-level math/rand/v2 source is.
func generate(intn func(n int) int) string {
	b := make([]byte, 0, Length)
	for len(b) < Length {
		c := lowLimit + intn(highLimit-lowLimit+1)
		if accepted(c) {
			b = append(b, byte(c))
		}
	}
	return string(b)
}

func accepted(c int) bool {
	return (c <= '9' || c >= 'A') && (c <= 'Z' || c >= 'a')
}

// Valid reports whether id has the shape of a generated ID.
func Valid(id string) bool {
	if len(id) != Length {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := int(id[i])
		if c < lowLimit || c > highLimit || !accepted(c) {
			return false
		}
	}
	return true
}
