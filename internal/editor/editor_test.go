package editor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/notify"
)

func newStore() *dataset.Store {
	s := dataset.NewStore()
	s.LoadDataset([]dataset.Record{{"likes": "1", "shares": "2"}}, []string{"likes", "shares"})
	return s
}

func TestCommitRenames(t *testing.T) {
	s := newStore()
	e := New(s)
	e.Begin("likes")
	if e.State() != Editing || e.Buffer() != "likes" {
		t.Fatalf("begin: state=%v buffer=%q", e.State(), e.Buffer())
	}
	if err := e.Type("  hearts "); err != nil {
		t.Fatal(err)
	}
	out := e.Commit()
	if !out.Renamed || out.To != "hearts" || out.Notice.Kind != notify.KindSuccess {
		t.Fatalf("outcome = %+v", out)
	}
	if e.State() != Display {
		t.Fatalf("state after commit = %v", e.State())
	}
	if got := s.Headers(); !reflect.DeepEqual(got, []string{"hearts", "shares"}) {
		t.Fatalf("headers = %v", got)
	}
}

func TestCommitUnchangedOrEmptyIsSilent(t *testing.T) {
	for _, buf := range []string{"likes", "", "   "} {
		s := newStore()
		e := New(s)
		e.Begin("likes")
		_ = e.Type(buf)
		out := e.Commit()
		if out.Renamed || !out.Notice.IsZero() {
			t.Fatalf("buffer %q: outcome = %+v", buf, out)
		}
		if got := s.Headers(); !reflect.DeepEqual(got, []string{"likes", "shares"}) {
			t.Fatalf("buffer %q: headers = %v", buf, got)
		}
	}
}

func TestCancelDiscards(t *testing.T) {
	s := newStore()
	e := New(s)
	e.Begin("likes")
	_ = e.Type("other")
	e.Cancel()
	if e.State() != Display || e.Column() != "" {
		t.Fatalf("cancel left state %v col %q", e.State(), e.Column())
	}
	if out := e.Commit(); out.Renamed {
		t.Fatalf("commit after cancel renamed")
	}
	if got := s.Headers(); !reflect.DeepEqual(got, []string{"likes", "shares"}) {
		t.Fatalf("headers = %v", got)
	}
}

func TestBeginSecondColumnCancelsFirst(t *testing.T) {
	s := newStore()
	e := New(s)
	e.Begin("likes")
	_ = e.Type("pending")
	e.Begin("shares")
	if e.Column() != "shares" || e.Buffer() != "shares" {
		t.Fatalf("column=%q buffer=%q", e.Column(), e.Buffer())
	}
	_ = e.Type("reposts")
	e.Commit()
	if got := s.Headers(); !reflect.DeepEqual(got, []string{"likes", "reposts"}) {
		t.Fatalf("headers = %v", got)
	}
}

func TestCollisionSurfacesErrorNotice(t *testing.T) {
	s := newStore()
	e := New(s)
	e.Begin("likes")
	_ = e.Type("shares")
	out := e.Commit()
	if out.Renamed || out.Notice.Kind != notify.KindError {
		t.Fatalf("outcome = %+v", out)
	}
	if e.State() != Display {
		t.Fatalf("state = %v", e.State())
	}
}

func TestTypeWithoutBegin(t *testing.T) {
	e := New(newStore())
	if err := e.Type("x"); !errors.Is(err, ErrNotEditing) {
		t.Fatalf("err = %v", err)
	}
}
