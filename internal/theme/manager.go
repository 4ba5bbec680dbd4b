package theme

import (
	"sync/atomic"
	"time"

	"github.com/harborgoods/storefront-web/internal/xerrors"
)

// Manager holds the active theme snapshot behind an atomic pointer so
// request handlers read it without locks while the watcher swaps bundles
// underneath them.
type Manager struct {
	active atomic.Pointer[Snapshot]
}

func NewManager() *Manager { return &Manager{} }

// Set installs s as the active snapshot. The snapshot is copied so the
// caller cannot mutate it afterwards.
func (m *Manager) Set(s Snapshot) {
	cp := new(Snapshot)
	*cp = s
	if cp.LoadedAt.IsZero() {
		cp.LoadedAt = time.Now().UTC()
	}
	m.active.Store(cp)
}

// Get returns the active snapshot and whether one is usable.
func (m *Manager) Get() (*Snapshot, bool) {
	s := m.active.Load()
	return s, s != nil && s.FS != nil
}

// ThemeVersion returns the active theme's version label for response
// headers and logs. Manifest version wins; the bundle hash is the
// fallback identity.
func (m *Manager) ThemeVersion() string {
	s := m.active.Load()
	if s == nil {
		return ""
	}
	if s.Manifest != nil && s.Manifest.Version != "" {
		return s.Manifest.Version
	}
	return s.Meta.Version
}

// ThemeHash returns the active bundle's SHA-256 for response headers.
func (m *Manager) ThemeHash() string {
	s := m.active.Load()
	if s == nil {
		return ""
	}
	return s.Meta.SHA256
}

func (m *Manager) Source() Source {
	s := m.active.Load()
	if s == nil {
		return SourceUnknown
	}
	return s.Meta.Source
}

func (m *Manager) LoadedAt() time.Time {
	s := m.active.Load()
	if s == nil {
		return time.Time{}
	}
	return s.LoadedAt
}

// ReadyErr reports whether a theme is active; used as a readiness check.
func (m *Manager) ReadyErr() error {
	if _, ok := m.Get(); !ok {
		return xerrors.New("theme: no active snapshot")
	}
	return nil
}
