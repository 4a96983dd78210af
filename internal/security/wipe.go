package security

import (
	"crypto/rand"
)

// WipeBytes securely wipes a byte slice by overwriting with random data,
// then zeros, then random data again to prevent recovery.
func WipeBytes(data []byte) {
	if len(data) == 0 {
		return
	}

	// First pass: random data
	rand.Read(data)

	// Second pass: zeros
	for i := range data {
		data[i] = 0
	}

	// Third pass: random data again
	rand.Read(data)

	// Final pass: zeros
	for i := range data {
		data[i] = 0
	}
}

// WipeString clears a string variable. Go strings are immutable, so the
// original backing memory cannot be scrubbed; prefer []byte for secrets that
// must not linger.
func WipeString(s *string) {
	if s == nil || *s == "" {
		return
	}

	b := []byte(*s)
	WipeBytes(b)
	*s = ""
}
