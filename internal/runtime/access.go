package runtime

// AccessMode declares how a task or acquire uses a handle.
type AccessMode int

const (
	// R shares the handle with other readers.
	R AccessMode = iota + 1
	// W overwrites the handle without reading it.
	W
	// RW reads and updates the handle.
	RW
	// RWCommute updates the handle in an order-independent way. Consecutive
	// commute accesses are unordered among themselves but never run
	// concurrently.
	RWCommute
	// Scratch requests per-worker temporary storage of the handle's size.
	Scratch
)

func (m AccessMode) String() string {
	switch m {
	case R:
		return "R"
	case W:
		return "W"
	case RW:
		return "RW"
	case RWCommute:
		return "RW|COMMUTE"
	case Scratch:
		return "SCRATCH"
	}
	return "INVALID"
}

func (m AccessMode) valid() bool { return m >= R && m <= Scratch }

// Access binds a handle to a mode for one task.
type Access struct {
	Handle *Handle
	Mode   AccessMode
}

// As is shorthand for Access{h, mode}.
func (h *Handle) As(mode AccessMode) Access {
	return Access{Handle: h, Mode: mode}
}
