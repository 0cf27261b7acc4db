package entity

import (
	"context"
	"io"
	"strconv"

	"github.com/jgivc/lmsexport/internal/util"
)

// File is the LMS file metadata needed to download it.
type File struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content-type"`
}

// Name returns the best available human readable name.
func (f *File) Name() string {
	switch {
	case f.DisplayName != "":
		return f.DisplayName
	case f.Filename != "":
		return f.Filename
	}

	return util.LastURLSegment(f.URL)
}

// Opener lazily opens the content of an archive entry. The returned stream is consumed once.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// ArchiveEntry is one file of the export archive.
type ArchiveEntry struct {
	Path string
	Open Opener
}

// EntryPath builds <courseID>/<Folder>/<name>[/<name>] with every name sanitized.
func EntryPath(courseID int64, category Category, names ...string) string {
	parts := make([]string, 0, len(names)+2)
	parts = append(parts, strconv.FormatInt(courseID, 10), category.Folder())
	for _, name := range names {
		parts = append(parts, util.SanitizeName(name))
	}

	return util.JoinPath(parts...)
}
