package theme

import (
	"io/fs"

	"github.com/harborgoods/storefront-web/internal/xerrors"
)

// ValidationOptions controls which checks ValidateSnapshot performs on a
// freshly loaded bundle before the watcher swaps it in.
type ValidationOptions struct {
	// RequiredFiles must all exist and be non-empty. These are the assets
	// the page templates reference unconditionally.
	RequiredFiles []string

	// MinFiles rejects bundles with fewer than this many files.
	// 0 disables the check.
	MinFiles int

	// RequireManifest fails validation when theme.json is missing or
	// unparseable. When false a missing manifest is tolerated.
	RequireManifest bool
}

// DefaultValidationOptions returns the production defaults: the layout's
// stylesheet and script must be present.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		RequiredFiles: []string{"app.css", "app.js"},
	}
}

// ValidateSnapshot sanity-checks a theme bundle. A bundle that fails
// validation is rejected and the currently active theme keeps serving.
func ValidateSnapshot(snap *Snapshot, opts ValidationOptions) error {
	if snap == nil {
		return xerrors.New("validate: snapshot is nil")
	}
	if snap.FS == nil {
		return xerrors.New("validate: snapshot has nil filesystem")
	}

	for _, name := range opts.RequiredFiles {
		if err := checkNonEmptyFile(snap.FS, name); err != nil {
			return err
		}
	}

	if opts.MinFiles > 0 {
		count, err := countFiles(snap.FS)
		if err != nil {
			return xerrors.Wrap(err, "validate: counting files")
		}
		if count < opts.MinFiles {
			return xerrors.Newf("validate: bundle has %d files, minimum is %d", count, opts.MinFiles)
		}
	}

	if opts.RequireManifest && snap.Manifest == nil {
		return xerrors.Newf("validate: %s is required but missing", ManifestFile)
	}

	return nil
}

func checkNonEmptyFile(fsys fs.FS, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		return xerrors.Wrapf(err, "validate: %s not found", name)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return xerrors.Wrapf(err, "validate: cannot stat %s", name)
	}
	if info.Size() == 0 {
		return xerrors.Newf("validate: %s is empty", name)
	}
	return nil
}

func countFiles(fsys fs.FS) (int, error) {
	count := 0
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count, err
}
