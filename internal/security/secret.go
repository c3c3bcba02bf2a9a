package security

import "crypto/rand"

// Secret holds sensitive bytes that are overwritten once no longer needed.
type Secret struct {
	data []byte
}

// NewSecret copies data into a Secret.
func NewSecret(data []byte) *Secret {
	d := make([]byte, len(data))
	copy(d, data)
	return &Secret{data: d}
}

// String returns the secret as a string. Nil and wiped secrets are empty.
func (s *Secret) String() string {
	if s == nil {
		return ""
	}
	return string(s.data)
}

// Bytes returns the held bytes. They are overwritten by Wipe.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.data
}

// Len returns the number of bytes held.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.data)
}

// Wipe overwrites the secret and releases it.
func (s *Secret) Wipe() {
	if s == nil {
		return
	}
	WipeBytes(s.data)
	s.data = nil
}

// WipeBytes overwrites data with random bytes and then zeros.
func WipeBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	rand.Read(data)
	clear(data)
}
