package byteutil

// Concat joins the given byte slices into a newly allocated slice,
// the inputs remain unchanged.
func Concat(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}

	joined := make([]byte, 0, size)
	for _, p := range parts {
		joined = append(joined, p...)
	}

	return joined
}

// Copy returns a copy of raw, nil stays nil.
func Copy(raw []byte) []byte {
	if raw == nil {
		return nil
	}

	copied := make([]byte, len(raw))
	copy(copied, raw)
	return copied
}
