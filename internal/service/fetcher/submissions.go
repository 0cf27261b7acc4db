package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgivc/lmsexport/internal/entity"
)

type submissionsFetcher struct {
	base
	log *slog.Logger
}

func (f *submissionsFetcher) Category() entity.Category {
	return entity.CategorySubmissions
}

func (f *submissionsFetcher) Enumerate(ctx context.Context, courseID int64) (Entries, error) {
	assignments, err := f.cl.ListAssignments(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("cannot list assignments: %w", err)
	}

	f.log.Debug("Found assignments", slog.Int64("course_id", courseID), slog.Int("count", len(assignments)))

	return func(yield func(*entity.ArchiveEntry, error) bool) {
		for _, assignment := range assignments {
			if ctx.Err() != nil {
				return
			}

			subs, err := f.cl.ListOwnSubmissions(ctx, courseID, assignment.ID)
			if err != nil {
				if !yield(nil, fmt.Errorf("assignment %q: %w", assignment.Name, err)) {
					return
				}

				continue
			}

			// Only the first record counts.
			if len(subs) == 0 {
				continue
			}

			name := assignment.Name
			if name == "" {
				name = fmt.Sprintf("assignment_%d", assignment.ID)
			}

			for i := range subs[0].Attachments {
				att := &subs[0].Attachments[i]
				if !yield(f.entry(att, entity.EntryPath(courseID, entity.CategorySubmissions, name, att.Name()))) {
					return
				}
			}
		}
	}, nil
}
