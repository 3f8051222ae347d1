// Package editor implements the column-header rename workflow.
//
// At most one column is edited at a time. Beginning an edit on another
// column drops the pending buffer of the previous one.
package editor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/socialhub-cli/internal/notify"
)

// State of the editor.
type State int

const (
	Display State = iota
	Editing
)

func (s State) String() string {
	if s == Editing {
		return "editing"
	}
	return "display"
}

// ErrNotEditing is returned by Type when no column is being edited.
var ErrNotEditing = errors.New("no column is being edited")

// Renamer is the store operation a commit calls.
type Renamer interface {
	RenameColumn(oldName, newName string) error
}

// Outcome is the result of a commit.
type Outcome struct {
	Renamed bool
	From    string
	To      string
	Notice  notify.Notice
}

// Editor is the Display/Editing state machine over header cells.
type Editor struct {
	store    Renamer
	state    State
	original string
	buffer   string
}

// New returns an editor in Display state.
func New(store Renamer) *Editor {
	return &Editor{store: store}
}

func (e *Editor) State() State { return e.state }

// Column returns the header being edited, or "" in Display state.
func (e *Editor) Column() string {
	if e.state != Editing {
		return ""
	}
	return e.original
}

// Buffer returns the current edit buffer.
func (e *Editor) Buffer() string { return e.buffer }

// Begin enters Editing for column, seeding the buffer with its current name.
// Any edit in progress on another column is cancelled.
func (e *Editor) Begin(column string) {
	e.state = Editing
	e.original = column
	e.buffer = column
}

// Type replaces the edit buffer.
func (e *Editor) Type(text string) error {
	if e.state != Editing {
		return ErrNotEditing
	}
	e.buffer = text
	return nil
}

// Cancel discards the buffer without touching the store.
func (e *Editor) Cancel() {
	e.reset()
}

// Commit applies the buffer. An empty or unchanged buffer is discarded silently.
func (e *Editor) Commit() Outcome {
	if e.state != Editing {
		return Outcome{}
	}
	from := e.original
	to := strings.TrimSpace(e.buffer)
	e.reset()
	if to == "" || to == from {
		return Outcome{From: from, To: from}
	}
	if err := e.store.RenameColumn(from, to); err != nil {
		return Outcome{From: from, To: to, Notice: notify.FromError(fmt.Errorf("rename column: %w", err))}
	}
	return Outcome{
		Renamed: true,
		From:    from,
		To:      to,
		Notice:  notify.Success("Column renamed to %q", to),
	}
}

func (e *Editor) reset() {
	e.state = Display
	e.original = ""
	e.buffer = ""
}
