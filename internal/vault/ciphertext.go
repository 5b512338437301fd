package vault

// Ciphertext is the opaque representation of a stored value. A ciphertext is
// sealed until a publication step marks it publicly decryptable; Reveal is
// rejected for sealed values. The type stands in for a real ciphertext
// algebra and only models the two operations the vault needs: reveal and
// combine.
type Ciphertext struct {
	data   []byte
	public bool
}

// Seal wraps raw bytes into a sealed ciphertext
func Seal(raw []byte) Ciphertext {
	data := make([]byte, len(raw))
	copy(data, raw)
	return Ciphertext{data: data}
}

// Combine blends entropy into the ciphertext with XOR semantics: the
// operation is commutative and self-inverse, so combining the same entropy
// twice restores the original value. Entropy shorter than the value is
// cycled.
func (c Ciphertext) Combine(entropy []byte) Ciphertext {
	if len(entropy) == 0 {
		return c
	}
	data := make([]byte, len(c.data))
	for i, b := range c.data {
		data[i] = b ^ entropy[i%len(entropy)]
	}
	return Ciphertext{data: data, public: c.public}
}

// Published reports whether the ciphertext is publicly decryptable
func (c Ciphertext) Published() bool {
	return c.public
}

// Reveal returns the underlying bytes of a published ciphertext. Sealed
// ciphertexts refuse to reveal.
func (c Ciphertext) Reveal() ([]byte, error) {
	if !c.public {
		return nil, ErrNotPublished
	}
	out := make([]byte, len(c.data))
	copy(out, c.data)
	return out, nil
}

// markPublished flips the ciphertext to its publicly decryptable variant
func (c Ciphertext) markPublished() Ciphertext {
	c.public = true
	return c
}
