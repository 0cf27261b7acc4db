package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/jgivc/lmsexport/internal/entity"
)

// ErrOutput means the archive destination failed, usually because the client went away.
var ErrOutput = errors.New("cannot write archive output")

// EntryError is a failure of one entry source. The archive itself is still usable.
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %s: %v", e.Path, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

type flusher interface {
	Flush()
}

// countingWriter counts written bytes and remembers the first write error.
type countingWriter struct {
	w     io.Writer
	count int64
	err   error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}

	return n, err
}

func (c *countingWriter) Flush() {
	if f, ok := c.w.(flusher); ok {
		f.Flush()
	}
}

// Writer streams entries into a zip archive. It is not safe for concurrent use.
type Writer struct {
	out   *countingWriter
	zw    *zip.Writer
	seen  map[string]struct{}
	files int
	log   *slog.Logger
}

func NewWriter(w io.Writer, log *slog.Logger) *Writer {
	out := &countingWriter{w: w}

	return &Writer{
		out:  out,
		zw:   zip.NewWriter(out),
		seen: make(map[string]struct{}),
		log:  log.With(slog.String("item", "ArchiveWriter")),
	}
}

/*
Add opens the entry and copies it into the archive, returning the name it was stored
under. Content is never buffered beyond the copy chunk, so a slow client slows the
upstream read down. Errors wrapping ErrOutput or a context error are fatal; an
*EntryError is not.
*/
func (a *Writer) Add(ctx context.Context, entry *entity.ArchiveEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rc, err := entry.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		return "", &EntryError{Path: entry.Path, Err: err}
	}
	defer rc.Close()

	name := a.uniqueName(entry.Path)

	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return "", a.fatal(err)
	}

	n, err := io.Copy(w, rc)
	if err != nil {
		switch {
		case a.out.err != nil:
			return "", a.fatal(err)
		case ctx.Err() != nil:
			return "", ctx.Err()
		}

		// The entry stays in the archive truncated.
		a.log.Warn("Entry truncated", slog.String("name", name), slog.Int64("bytes", n), slog.Any("error", err))

		return name, &EntryError{Path: entry.Path, Err: err}
	}

	if err := a.flush(); err != nil {
		return "", err
	}

	a.files++
	a.log.Debug("Entry added", slog.String("name", name), slog.Int64("bytes", n))

	return name, nil
}

// AddBytes stores a small generated file.
func (a *Writer) AddBytes(name string, data []byte) (string, error) {
	name = a.uniqueName(name)

	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return "", a.fatal(err)
	}

	if _, err := w.Write(data); err != nil {
		return "", a.fatal(err)
	}

	a.files++

	return name, a.flush()
}

// Close writes the central directory. The underlying writer is left open.
func (a *Writer) Close() error {
	if err := a.zw.Close(); err != nil {
		return a.fatal(err)
	}

	a.out.Flush()
	a.log.Debug("Archive finished", slog.Int("files", a.files), slog.Int64("bytes", a.out.count))

	return nil
}

func (a *Writer) Files() int {
	return a.files
}

func (a *Writer) Size() int64 {
	return a.out.count
}

func (a *Writer) flush() error {
	if err := a.zw.Flush(); err != nil {
		return a.fatal(err)
	}

	a.out.Flush()

	return nil
}

func (a *Writer) fatal(err error) error {
	return fmt.Errorf("%w: %w", ErrOutput, err)
}

// uniqueName appends " (n)" before the extension of names already stored.
func (a *Writer) uniqueName(name string) string {
	if _, exists := a.seen[name]; !exists {
		a.seen[name] = struct{}{}

		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, exists := a.seen[candidate]; !exists {
			a.seen[candidate] = struct{}{}

			return candidate
		}
	}
}
