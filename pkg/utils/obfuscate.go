package utils

const externalIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Feistel scrambles a sequential id with a three round Feistel network keyed
// into the round function. Only the low 32 bits of value are used.
func Feistel(value int64) int64 {
	l1 := (value >> 16) & 65535
	r1 := value & 65535
	for i := 0; i < 3; i++ {
		l2 := r1
		r2 := l1 ^ int64(float64((123*r1+4567)%8910123)/654321.0*98765)
		l1, r1 = l2, r2
	}
	return (r1 << 16) + l1
}

// Stringify encodes value in base 62, least significant digit first.
// Zero and negative values encode to "".
func Stringify(value int64) string {
	base := int64(len(externalIDAlphabet))
	var out []byte
	for value > 0 {
		out = append(out, externalIDAlphabet[value%base])
		value /= base
	}
	return string(out)
}

// ExternalID is the public, non-sequential identifier for a registration id.
func ExternalID(id int64) string {
	return Stringify(Feistel(id))
}
