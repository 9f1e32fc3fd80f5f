// Package cachekey builds and matches memory cache keys.
//
// A key is the canonical source identifier, the Separator, then the encoded
// request parameters. Prefix invalidation relies on the source identifier
// never containing Separator; Build enforces that for keys built here.
package cachekey

import (
	"strings"

	platformerrors "github.com/jmgilman/go/errors"
)

// Separator divides the source identifier from the encoded parameters.
const Separator = '\x00'

// Build joins source and params into a key. Each param is terminated by
// Separator so that distinct parameter lists never collide.
func Build(source string, params ...string) (string, error) {
	if source == "" {
		return "", platformerrors.New(platformerrors.CodeInvalidInput, "cache key source is empty")
	}
	if strings.IndexByte(source, Separator) >= 0 {
		return "", platformerrors.Newf(platformerrors.CodeInvalidInput,
			"cache key source %q contains the reserved separator", source)
	}

	var sb strings.Builder
	sb.WriteString(source)
	sb.WriteByte(Separator)
	for _, p := range params {
		sb.WriteString(p)
		sb.WriteByte(Separator)
	}
	return sb.String(), nil
}

// HasSource reports whether key was built for exactly source: the first
// Separator sits at len(source) and everything before it equals source.
// "http://a.com/x" matches "http://a.com/x\x00..." but not
// "http://a.com/xyz\x00...".
func HasSource(key, source string) bool {
	idx := strings.IndexByte(key, Separator)
	return idx == len(source) && key[:idx] == source
}

// Source returns the source identifier of key, or "" if key has no Separator.
func Source(key string) string {
	idx := strings.IndexByte(key, Separator)
	if idx < 0 {
		return ""
	}
	return key[:idx]
}
