package service

// State is the lifecycle stage of a Session.
type State int

const (
	Uninitialized State = iota // Start has not been called
	Loading                    // fetching the seed and players
	Ready                      // maze generated, moves accepted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	}
	return "unknown"
}
