package util

import (
	"net/url"
	"path"
	"strings"
)

const (
	placeholder = "_"
	unnamed     = "unnamed"
)

var nameReplacer = strings.NewReplacer("/", placeholder, "\\", placeholder, "\x00", placeholder)

// SanitizeName makes a user controlled name safe to use as one archive path segment.
func SanitizeName(name string) string {
	name = strings.TrimSpace(nameReplacer.Replace(name))

	switch name {
	case "":
		return unnamed
	case ".", "..":
		return strings.Repeat(placeholder, len(name))
	}

	return name
}

// JoinPath joins already sanitized segments with forward slashes.
func JoinPath(parts ...string) string {
	return strings.Join(parts, "/")
}

// LastURLSegment returns the unescaped last path segment of rawURL.
func LastURLSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}

	return base
}
