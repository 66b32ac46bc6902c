package kernel

// Clear zeroes a buffer. All-zero bytes are +0.0 for both element kinds.
func Clear(b []byte) {
	clear(b)
}
