package fetcher

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/jgivc/lmsexport/internal/entity"
)

type Client interface {
	ListModules(ctx context.Context, courseID int64) ([]entity.Module, error)
	ListModuleItems(ctx context.Context, courseID, moduleID int64) ([]entity.ModuleItem, error)
	GetFile(ctx context.Context, courseID, fileID int64) (*entity.File, error)
	GetSyllabus(ctx context.Context, courseID int64) (string, error)
	ListPages(ctx context.Context, courseID int64) ([]entity.Page, error)
	GetPage(ctx context.Context, courseID int64, pageURL string) (*entity.Page, error)
	ListAssignments(ctx context.Context, courseID int64) ([]entity.Assignment, error)
	ListOwnSubmissions(ctx context.Context, courseID, assignmentID int64) ([]entity.Submission, error)
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Entries yields archive entries; a yielded error is a failed item, the sequence goes on after it.
type Entries = iter.Seq2[*entity.ArchiveEntry, error]

/*
Fetcher enumerates the files of one category of a course. An error returned by
Enumerate means the category listing itself failed and nothing can be exported.
*/
type Fetcher interface {
	Category() entity.Category
	Enumerate(ctx context.Context, courseID int64) (Entries, error)
}

type Set map[entity.Category]Fetcher

func NewSet(cl Client, log *slog.Logger) Set {
	b := base{cl: cl}

	return Set{
		entity.CategoryModules:     &modulesFetcher{base: b, log: log.With(slog.String("item", "ModulesFetcher"))},
		entity.CategorySyllabus:    &syllabusFetcher{base: b, log: log.With(slog.String("item", "SyllabusFetcher"))},
		entity.CategoryPages:       &pagesFetcher{base: b, log: log.With(slog.String("item", "PagesFetcher"))},
		entity.CategorySubmissions: &submissionsFetcher{base: b, log: log.With(slog.String("item", "SubmissionsFetcher"))},
	}
}

type base struct {
	cl Client
}

func (b *base) entry(file *entity.File, path string) (*entity.ArchiveEntry, error) {
	if file.URL == "" {
		return nil, fmt.Errorf("file %d (%s) has no download url", file.ID, file.Name())
	}

	rawURL := file.URL

	return &entity.ArchiveEntry{
		Path: path,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return b.cl.Open(ctx, rawURL)
		},
	}, nil
}

/*
yieldFileRefs resolves every file referenced from an html body and yields it under
<courseID>/<category>/<folders...>/<file name>. It returns false when the consumer stopped.
*/
func (b *base) yieldFileRefs(ctx context.Context, yield func(*entity.ArchiveEntry, error) bool,
	category entity.Category, courseID int64, body string, folders ...string) bool {
	for _, fileID := range fileRefs(body) {
		if ctx.Err() != nil {
			return false
		}

		file, err := b.cl.GetFile(ctx, courseID, fileID)
		if err != nil {
			if !yield(nil, err) {
				return false
			}

			continue
		}

		names := append(append([]string(nil), folders...), file.Name())
		if !yield(b.entry(file, entity.EntryPath(courseID, category, names...))) {
			return false
		}
	}

	return true
}

// fileRefRegex matches links to course files inside an html body.
var fileRefRegex = regexp.MustCompile(`(?:href|src|data-api-endpoint)="[^"]*/files/(\d+)`)

// fileRefs returns referenced file ids in order of first appearance.
func fileRefs(body string) []int64 {
	var (
		ids  []int64
		seen = make(map[int64]struct{})
	)

	for _, m := range fileRefRegex.FindAllStringSubmatch(body, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}

		if _, exists := seen[id]; exists {
			continue
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids
}
