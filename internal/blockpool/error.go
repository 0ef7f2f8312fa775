package blockpool

// Errno is the outcome code recorded by the most recent Allocate call.
type Errno int

const (
	Success Errno = iota
	NoMem
	ShouldPack
)

func (e Errno) String() string {
	switch e {
	case Success:
		return "Success"
	case NoMem:
		return "Not enough memory"
	case ShouldPack:
		return "Not enough contiguous blocks"
	default:
		return "Unknown error"
	}
}

var (
	ErrNoMem       = &AllocError{Msg: "request exceeds pool capacity", Code: NoMem}
	ErrShouldPack  = &AllocError{Msg: "no contiguous free run is large enough", Code: ShouldPack}
	ErrOutOfRange  = &AllocError{Msg: "block index out of range"}
	ErrInvalidSeed = &AllocError{Msg: "invalid free list seed"}
)

type AllocError struct {
	Msg string
	// Code is the Errno an Allocate failure records; zero for errors that
	// do not come from Allocate.
	Code Errno
}

func (e *AllocError) Error() string {
	return e.Msg
}

func (e *AllocError) Is(target error) bool {
	if targetErr, ok := target.(*AllocError); ok {
		return e.Msg == targetErr.Msg
	}
	return false
}
