// Package hasher provides deterministic one-way filename transforms.
//
// A transform hashes the stem of a filename and keeps its extension, so
// "Report 2024.PDF" becomes "<hex digest>.pdf". Transforms are selected by
// name once, at configuration time, via ByName.
package hasher

import (
	"crypto/md5"  //nolint:gosec // used for naming, not security
	"crypto/sha1" //nolint:gosec // used for naming, not security
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"path/filepath"
	"sort"
	"strings"

	"github.com/code19m/errx"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// CodeUnknownTransform is returned by ByName for an unregistered name.
const CodeUnknownTransform = "UNKNOWN_NAME_TRANSFORM"

// Transform derives a stored filename from the original one.
type Transform func(name string) string

//nolint:gochecknoglobals // static lookup table
var transforms = map[string]Transform{
	"md5":     digest(md5.New),
	"sha1":    digest(sha1.New),
	"sha256":  digest(sha256.New),
	"sha3":    digest(sha3.New256),
	"blake2b": digest(newBlake2b),
}

// ByName returns the transform registered under name.
// An empty name or "none" yields a nil transform, meaning identity.
func ByName(name string) (Transform, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || key == "none" {
		return nil, nil
	}
	t, ok := transforms[key]
	if !ok {
		return nil, errx.New(
			"unknown filename transform",
			errx.WithCode(CodeUnknownTransform),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"name": name, "known": Names()}),
		)
	}
	return t, nil
}

// Names lists the registered transform names in sorted order.
func Names() []string {
	names := make([]string, 0, len(transforms))
	for n := range transforms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SHA1 hashes the filename stem with SHA-1, keeping the extension.
func SHA1(name string) string {
	return transforms["sha1"](name)
}

func digest(newHash func() hash.Hash) Transform {
	return func(name string) string {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)

		h := newHash()
		_, _ = h.Write([]byte(stem))
		return hex.EncodeToString(h.Sum(nil)) + strings.ToLower(ext)
	}
}

func newBlake2b() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for oversized keys
		panic(err)
	}
	return h
}
