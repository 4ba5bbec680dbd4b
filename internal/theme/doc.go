// Package theme manages the storefront's theme asset bundles (css, js,
// fonts, images). The binary ships with an embedded seed theme; at runtime
// the server can hot-swap to a remote bundle published to S3, with the
// current release hash advertised in an SSM parameter and optionally
// signed by a KMS key. Swaps are atomic and old bundles are garbage
// collected with their in-memory filesystems.
package theme
