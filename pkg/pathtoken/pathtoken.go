// Package pathtoken derives the deterministic remote naming token for a
// local project folder. The token couples the folder's basename with a short
// fingerprint of its canonical absolute path, so two folders with the same
// name in different locations never collide on the remote.
package pathtoken

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// HashLength is the number of hex characters kept from the path fingerprint.
// Eight characters (32 bits) are plenty for the handful of project folders a
// single machine backs up, and keep remote directory names readable.
const HashLength = 8

// Token identifies a local project folder for remote naming. It is derived
// once per run from the canonicalized absolute path and never changes during
// the run.
type Token struct {
	// ProjectName is the basename of the canonical path.
	ProjectName string
	// Hash is the fixed-width fingerprint of the canonical path.
	Hash string
}

// New derives a Token from a canonical absolute path. Canonicalization
// (tilde expansion, symlink resolution, case normalization where the
// filesystem requires it) is the caller's responsibility and must happen
// before hashing, otherwise the same folder can fingerprint differently.
func New(canonicalAbsPath string) (Token, error) {
	if canonicalAbsPath == "" {
		return Token{}, fmt.Errorf("cannot derive token from empty path")
	}
	if !filepath.IsAbs(canonicalAbsPath) {
		return Token{}, fmt.Errorf("path %q must be absolute before hashing", canonicalAbsPath)
	}

	name := filepath.Base(canonicalAbsPath)
	if name == string(filepath.Separator) || name == "." {
		name = "folder"
	}

	return Token{
		ProjectName: name,
		Hash:        Fingerprint(canonicalAbsPath),
	}, nil
}

// Fingerprint returns the first HashLength hex characters of the SHA-1 digest
// of the input. Same input always yields the same output, on any machine.
func Fingerprint(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// BaseName returns the remote directory base name, "<project>_<hash>",
// without any snapshot bucket suffix.
func (t Token) BaseName() string {
	return t.ProjectName + "_" + t.Hash
}
