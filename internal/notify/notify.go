package notify

import "fmt"

// Kind classifies a notice for display.
type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notice is a display-only outcome of a user action.
type Notice struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func Success(format string, args ...any) Notice {
	return Notice{Kind: KindSuccess, Message: fmt.Sprintf(format, args...)}
}

func Info(format string, args ...any) Notice {
	return Notice{Kind: KindInfo, Message: fmt.Sprintf(format, args...)}
}

func Warning(format string, args ...any) Notice {
	return Notice{Kind: KindWarning, Message: fmt.Sprintf(format, args...)}
}

func Error(format string, args ...any) Notice {
	return Notice{Kind: KindError, Message: fmt.Sprintf(format, args...)}
}

// FromError wraps err as an error notice. A nil error yields the zero Notice.
func FromError(err error) Notice {
	if err == nil {
		return Notice{}
	}
	return Notice{Kind: KindError, Message: err.Error()}
}

// IsZero reports whether n carries nothing to show.
func (n Notice) IsZero() bool { return n.Message == "" }

// String renders the notice with the CLI status glyphs.
func (n Notice) String() string {
	switch n.Kind {
	case KindSuccess:
		return "✓ " + n.Message
	case KindWarning:
		return "⚠ " + n.Message
	case KindError:
		return "✗ " + n.Message
	default:
		return n.Message
	}
}
