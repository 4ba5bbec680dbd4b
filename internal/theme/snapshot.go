package theme

import (
	"io/fs"
	"time"
)

type Source string

const (
	SourceUnknown Source = "unknown"
	SourceSeed    Source = "seed"
	SourceS3      Source = "s3"
)

type Meta struct {
	Version    string    `json:"version,omitempty"`
	SHA256     string    `json:"sha256,omitempty"`
	VerifiedAt time.Time `json:"verified_at,omitempty"`
	Source     Source    `json:"source,omitempty"`

	// Signed is true when the bundle's signature was verified against
	// the release signing key.
	Signed bool `json:"signed,omitempty"`
}

// Snapshot is one immutable theme bundle: its files plus metadata about
// where it came from and how it was verified.
type Snapshot struct {
	FS       fs.FS
	Meta     Meta
	Manifest *Manifest
	LoadedAt time.Time
}
