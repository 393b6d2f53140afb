package cpuprobe

import "github.com/pkg/errors"

var (
	// ErrUnsupportedLeaf is returned when a leaf above the processor's
	// limits is requested through QueryChecked.
	ErrUnsupportedLeaf = errors.New("unsupported cpuid leaf")

	// ErrUnsupportedVendor marks a degraded topology for a vendor that is
	// neither Intel nor AMD. The accompanying Topology is still usable.
	ErrUnsupportedVendor = errors.New("unsupported cpu vendor")

	// ErrDegenerateDivisor is returned when a topology division would use a
	// zero thread or logical processor count.
	ErrDegenerateDivisor = errors.New("degenerate topology divisor")

	// ErrMalformedBitRange is returned for bit ranges outside 0..31 or with
	// start > end.
	ErrMalformedBitRange = errors.New("malformed bit range")

	// ErrPinningUnsupported is returned by OnCPU where thread affinity
	// cannot be set.
	ErrPinningUnsupported = errors.New("cpu pinning not supported on this platform")

	// ErrUnknownFeature is returned by ParseFeature for names outside the
	// decoded feature set.
	ErrUnknownFeature = errors.New("unknown feature")
)
