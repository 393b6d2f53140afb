package cpuprobe

import "github.com/pkg/errors"

// Bits returns bits start..end (inclusive) of word, shifted down so that bit
// start becomes bit 0.
func Bits(word uint32, start, end uint8) (uint32, error) {
	if start > end || end > 31 {
		return 0, errors.Wrapf(ErrMalformedBitRange, "[%d, %d]", start, end)
	}
	width := end - start + 1
	if width == 32 {
		return word, nil
	}
	return (word >> start) & (1<<width - 1), nil
}

// Bit reports whether bit n of word is set.
func Bit(word uint32, n uint8) (bool, error) {
	v, err := Bits(word, n, n)
	return v == 1, err
}

// MustBits is like Bits but panics on a malformed range. It is meant for
// field layouts fixed at compile time.
func MustBits(word uint32, start, end uint8) uint32 {
	v, err := Bits(word, start, end)
	if err != nil {
		panic(err)
	}
	return v
}

// MustBit is like Bit but panics if n > 31.
func MustBit(word uint32, n uint8) bool {
	return MustBits(word, n, n) == 1
}
