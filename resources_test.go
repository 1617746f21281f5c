package cartomesh

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/LynnColeArt/cartomesh/diag"
)

type fakeView struct {
	released bool
	err      error
}

func (f *fakeView) Release() error {
	if f.released {
		panic("double release")
	}
	f.released = true
	return f.err
}

func TestResourceSetReleasesAllTrackedViews(t *testing.T) {
	rs := newResourceSet()
	v1, v2 := &fakeView{}, &fakeView{}
	rs.track(v1)
	rs.track(v2)
	rs.track(nil) // must not panic or be released

	rs.Close()

	if !v1.released || !v2.released {
		t.Fatal("expected both tracked views released")
	}
}

func TestResourceSetCloseIsIdempotent(t *testing.T) {
	rs := newResourceSet()
	v := &fakeView{}
	rs.track(v)
	rs.Close()
	rs.Close() // must not re-release or panic
}

func TestResourceSetLogsReleaseFailures(t *testing.T) {
	var buf bytes.Buffer
	diag.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer diag.SetLogger(nil)

	rs := newResourceSet()
	rs.track(&fakeView{err: errors.New("boom")})
	rs.Close()

	if buf.Len() == 0 {
		t.Fatal("expected a release-failure log line")
	}
}
