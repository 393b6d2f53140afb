package cpuprobe

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// Endianness selects a byte order for ToBytes.
type Endianness int

// Supported byte orders.
const (
	LittleEndian Endianness = iota
	BigEndian
)

func (e Endianness) String() string {
	if e == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

// HostOrder is the byte order of the running program.
var HostOrder = func() Endianness {
	if cpu.IsBigEndian {
		return BigEndian
	}
	return LittleEndian
}()

// Unsigned is the set of integer types ToBytes accepts.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// ToBytes returns the memory image of v in the requested byte order,
// independent of the host's order. The result always has unsafe.Sizeof(v)
// bytes.
func ToBytes[T Unsigned](v T, order Endianness) []byte {
	b := make([]byte, unsafe.Sizeof(v))
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.NativeEndian.PutUint16(b, uint16(v))
	case 4:
		binary.NativeEndian.PutUint32(b, uint32(v))
	case 8:
		binary.NativeEndian.PutUint64(b, uint64(v))
	}
	if order != HostOrder {
		reverse(b)
	}
	return b
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// RegisterText renders a register as the four characters it holds in
// memory, replacing bytes outside printable ASCII with '.'.
func RegisterText(v uint32) string {
	b := ToBytes(v, LittleEndian)
	for i, c := range b {
		if c < 0x20 || c > 0x7e {
			b[i] = '.'
		}
	}
	return string(b)
}
