package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nestybox/beacon/nskey"
)

type fakeContainer struct {
	alive   bool
	aliveErr error
	ns      nskey.Key
	nsOK    bool
}

func (f *fakeContainer) Alive(ctx context.Context) (bool, error) { return f.alive, f.aliveErr }
func (f *fakeContainer) Namespace(ctx context.Context) (nskey.Key, bool) { return f.ns, f.nsOK }

type fakeProbe struct {
	perCPU    []nskey.EventBitmap
	readErr   error
	cleanedUp int
}

func (f *fakeProbe) Read(key nskey.Key) ([]nskey.EventBitmap, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.perCPU, nil
}

func (f *fakeProbe) Cleanup() { f.cleanedUp++ }

func fakeLoader(pr ProbeReader) ProbeLoader {
	return func() (ProbeReader, error) { return pr, nil }
}

func TestSession_HappyPath(t *testing.T) {
	bmp := nskey.EventBitmap{}
	bmp.SetSyscall(59)
	bmp.SetSyscall(230)
	bmp.SetCapability(12)

	fp := &fakeProbe{perCPU: []nskey.EventBitmap{bmp}}
	s := NewWithLoader(10*time.Millisecond, fakeLoader(fp))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	key := nskey.Key{Pid: 1}
	if err := s.Notify(&fakeContainer{alive: true, ns: key, nsOK: true}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}

	snap, err := s.GetResult()
	if err != nil {
		t.Fatalf("GetResult() error: %v", err)
	}
	if snap == nil {
		t.Fatal("expected non-nil snapshot")
	}
	if len(snap.Syscalls) != 2 || snap.Syscalls[0] != 59 || snap.Syscalls[1] != 230 {
		t.Fatalf("unexpected syscalls: %v", snap.Syscalls)
	}
	if len(snap.Capabilities) != 1 || snap.Capabilities[0] != 12 {
		t.Fatalf("unexpected capabilities: %v", snap.Capabilities)
	}
	if fp.cleanedUp != 1 {
		t.Fatalf("expected probe cleanup exactly once, got %d", fp.cleanedUp)
	}
}

func TestSession_DeadContainerYieldsNilSnapshot(t *testing.T) {
	fp := &fakeProbe{}
	s := NewWithLoader(5*time.Millisecond, fakeLoader(fp))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := s.Notify(&fakeContainer{alive: false}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}

	snap, err := s.GetResult()
	if err != nil {
		t.Fatalf("GetResult() error: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot for dead container, got %+v", snap)
	}
}

func TestSession_UnresolvedNamespaceYieldsNilSnapshot(t *testing.T) {
	fp := &fakeProbe{}
	s := NewWithLoader(5*time.Millisecond, fakeLoader(fp))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := s.Notify(&fakeContainer{alive: true, nsOK: false}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}

	snap, err := s.GetResult()
	if err != nil {
		t.Fatalf("GetResult() error: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot for unresolved namespace, got %+v", snap)
	}
}

func TestSession_StartTwiceIsIllegalState(t *testing.T) {
	fp := &fakeProbe{}
	s := NewWithLoader(time.Millisecond, fakeLoader(fp))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected IllegalState on second Start()")
	}
}

func TestSession_GetResultBeforeNotifyIsIllegalState(t *testing.T) {
	fp := &fakeProbe{}
	s := NewWithLoader(time.Millisecond, fakeLoader(fp))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if _, err := s.GetResult(); err == nil {
		t.Fatal("expected IllegalState when GetResult precedes Notify")
	}
}

func TestSession_NotifyBeforeStartIsIllegalState(t *testing.T) {
	fp := &fakeProbe{}
	s := NewWithLoader(time.Millisecond, fakeLoader(fp))

	if err := s.Notify(&fakeContainer{alive: true}); err == nil {
		t.Fatal("expected IllegalState when Notify precedes Start")
	}
}

func TestSession_ProbeLoadFailurePropagates(t *testing.T) {
	wantErr := errors.New("boom")
	s := NewWithLoader(time.Millisecond, func() (ProbeReader, error) { return nil, wantErr })

	if err := s.Start(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped loader error, got %v", err)
	}
}
