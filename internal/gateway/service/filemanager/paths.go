package filemanager

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"docbridge/internal/document"
)

var ErrInvalidRequest = errors.New("invalid file manager request")

// normalizeDir turns a widget path ("/", "/team/", "Files/team") into the
// blob prefix it denotes ("Files/", "Files/team/").
func normalizeDir(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	p = strings.Trim(p, "/")
	root := strings.TrimSuffix(document.Root, "/")
	if p == root {
		p = ""
	} else {
		p = strings.TrimPrefix(p, document.Root)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "." {
			return "", fmt.Errorf("%w: invalid path %s", ErrInvalidRequest, p)
		}
	}
	if p == "" {
		return document.Root, nil
	}
	return document.Root + p + "/", nil
}

// filterPath is the widget-facing form of a blob prefix: "Files/team/" -> "/team/".
func filterPath(dir string) string {
	rel := strings.TrimPrefix(dir, document.Root)
	if rel == "" {
		return "/"
	}
	return "/" + rel
}

func validName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: invalid name %q", ErrInvalidRequest, name)
	}
	return nil
}

func dirName(dir string) string {
	trimmed := strings.TrimSuffix(dir, "/")
	return path.Base(trimmed)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// maxRenameAttempts bounds the search for a free "name(n).ext".
const maxRenameAttempts = 1000

// nextFreeName returns "name(n).ext" for the smallest n not in taken. Errors
// from taken abort the search.
func nextFreeName(name string, taken func(string) (bool, error)) (string, error) {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; n <= maxRenameAttempts; n++ {
		candidate := fmt.Sprintf("%s(%d)%s", base, n, ext)
		used, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", name, maxRenameAttempts)
}
