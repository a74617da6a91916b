package upload

// State is the lifecycle stage of a pending upload
type State int

const (
	// StateQueued waits for the next submission
	StateQueued State = iota
	// StateProcessing is part of an in-flight request
	StateProcessing
	// StateFailed was rejected by the backend or lost to a network error
	StateFailed
	// StateDone was saved by the backend and left the queue
	StateDone
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateProcessing:
		return "processing"
	case StateFailed:
		return "error"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// File is an image picked by the user
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Item is a file in the upload queue together with its UI state.
// Items are tracked by Token, never by filename.
type Item struct {
	Token       string
	Filename    string
	ContentType string
	Data        []byte
	Preview     []byte // PNG thumbnail, nil when it could not be rendered
	State       State
	Reason      string // backend message for StateFailed
	Retries     int
}
