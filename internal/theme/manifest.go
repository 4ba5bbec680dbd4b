package theme

import (
	"encoding/json"
	"io/fs"
	"time"

	"github.com/harborgoods/storefront-web/internal/xerrors"
)

// ManifestFile is the well-known name of the bundle manifest inside a
// theme bundle. Bundles without one still load; the manifest only adds
// version labeling for headers and logs.
const ManifestFile = "theme.json"

type Manifest struct {
	Name    string    `json:"name,omitempty"`
	Version string    `json:"version,omitempty"`
	BuiltAt time.Time `json:"built_at,omitempty"`
}

// LoadManifest reads and parses theme.json from a bundle filesystem.
func LoadManifest(fsys fs.FS) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, ManifestFile)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s", ManifestFile)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, xerrors.Wrapf(err, "parse %s", ManifestFile)
	}
	return &m, nil
}
