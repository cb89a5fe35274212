// Package platform provides the filesystem primitives the sync engine is
// built on: symlink creation and inspection, atomic file replacement, and
// copy-based backups. On Unix systems it uses native symlinks directly. On
// Windows, file symlinks fall back to a copy plus a .target sidecar when
// developer mode symlinks are unavailable.
package platform
