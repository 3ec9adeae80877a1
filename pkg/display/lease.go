package display

import (
	"fmt"
	"sync"

	"github.com/kamrankamilli/gsdoom/pkg/session"
)

// Lease is exclusive use of the render target by one owner. It implements
// session.RenderTarget.
type Lease struct {
	d     *Display
	owner string

	revoked    chan struct{}
	revokeOnce sync.Once

	hookMu sync.Mutex
	hook   func()
}

var _ session.RenderTarget = (*Lease)(nil)

func newLease(d *Display, owner string) *Lease {
	return &Lease{d: d, owner: owner, revoked: make(chan struct{})}
}

// Owner returns the owner the lease was granted to.
func (l *Lease) Owner() string { return l.owner }

// Revoked is closed when the lease loses the render target.
func (l *Lease) Revoked() <-chan struct{} { return l.revoked }

func (l *Lease) isRevoked() bool {
	select {
	case <-l.revoked:
		return true
	default:
		return false
	}
}

func (l *Lease) revoke() { l.revokeOnce.Do(func() { close(l.revoked) }) }

func (l *Lease) Layout() session.Layout { return l.d.layout }

// Attach installs the update hook.
func (l *Lease) Attach(onUpdate func()) error {
	if l.isRevoked() {
		return ErrRevoked
	}
	l.hookMu.Lock()
	l.hook = onUpdate
	l.hookMu.Unlock()
	return nil
}

// Detach removes the hook, waiting for a running call to return.
func (l *Lease) Detach() {
	l.hookMu.Lock()
	l.hook = nil
	l.hookMu.Unlock()
}

func (l *Lease) fire() {
	l.hookMu.Lock()
	defer l.hookMu.Unlock()
	if l.hook != nil && !l.isRevoked() {
		l.hook()
	}
}

// ReadPixels copies the latest frame into dst.
func (l *Lease) ReadPixels(dst []byte) error {
	d := l.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lease != l {
		return ErrRevoked
	}
	if !d.hasPix {
		return ErrNoFrame
	}
	if len(dst) < len(d.pixels) {
		return fmt.Errorf("display: pixel buffer has %d bytes, want %d", len(dst), len(d.pixels))
	}
	copy(dst, d.pixels)
	return nil
}

// Exit gives the render target back. The provider is stopped when l still
// held it.
func (l *Lease) Exit() error { return l.d.release(l) }

// SendKey forwards a key to the render target while l holds it.
func (l *Lease) SendKey(key string, down bool) error {
	if l.isRevoked() {
		return ErrRevoked
	}
	return l.d.SendKey(key, down)
}
