package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgivc/lmsexport/internal/entity"
)

type syllabusFetcher struct {
	base
	log *slog.Logger
}

func (f *syllabusFetcher) Category() entity.Category {
	return entity.CategorySyllabus
}

func (f *syllabusFetcher) Enumerate(ctx context.Context, courseID int64) (Entries, error) {
	body, err := f.cl.GetSyllabus(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("cannot get syllabus: %w", err)
	}

	f.log.Debug("Found syllabus", slog.Int64("course_id", courseID), slog.Int("files", len(fileRefs(body))))

	return func(yield func(*entity.ArchiveEntry, error) bool) {
		f.yieldFileRefs(ctx, yield, entity.CategorySyllabus, courseID, body)
	}, nil
}
