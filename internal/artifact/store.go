// Package artifact stores probe screenshots on local disk or in S3.
package artifact

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrInvalidName is returned for names that would escape the store root.
var ErrInvalidName = errors.New("artifact: invalid name")

// Store persists a named artifact and returns where it ended up (a file path
// or an object URL).
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// cleanName normalizes a slash-separated artifact name and rejects absolute
// or parent-relative names.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", ErrInvalidName
	}
	c := path.Clean(name)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrInvalidName
	}
	return c, nil
}
