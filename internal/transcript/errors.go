package transcript

// ErrorKind enumerates the ways Parse can fail.
type ErrorKind int

const (
	KindEmptyText ErrorKind = iota + 1
	KindNoMessagesFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindEmptyText:
		return "empty_text"
	case KindNoMessagesFound:
		return "no_messages_found"
	default:
		return "unknown"
	}
}

// Error is returned by Parse. Compare with errors.Is against ErrEmptyText
// or ErrNoMessagesFound.
type Error struct {
	Kind ErrorKind
}

func (e *Error) Error() string {
	return "transcript: " + e.Kind.String()
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrEmptyText       = &Error{Kind: KindEmptyText}
	ErrNoMessagesFound = &Error{Kind: KindNoMessagesFound}
)
