package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgivc/lmsexport/internal/entity"
)

type pagesFetcher struct {
	base
	log *slog.Logger
}

func (f *pagesFetcher) Category() entity.Category {
	return entity.CategoryPages
}

func (f *pagesFetcher) Enumerate(ctx context.Context, courseID int64) (Entries, error) {
	pages, err := f.cl.ListPages(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("cannot list pages: %w", err)
	}

	f.log.Debug("Found pages", slog.Int64("course_id", courseID), slog.Int("count", len(pages)))

	return func(yield func(*entity.ArchiveEntry, error) bool) {
		for _, p := range pages {
			if ctx.Err() != nil {
				return
			}

			// An empty slug would address the page listing itself.
			if p.URL == "" {
				if !yield(nil, fmt.Errorf("page %q has no url", p.Title)) {
					return
				}

				continue
			}

			page, err := f.cl.GetPage(ctx, courseID, p.URL)
			if err != nil {
				if !yield(nil, fmt.Errorf("page %q: %w", p.Title, err)) {
					return
				}

				continue
			}

			title := page.Title
			if title == "" {
				title = p.Title
			}

			if !f.yieldFileRefs(ctx, yield, entity.CategoryPages, courseID, page.Body, title) {
				return
			}
		}
	}, nil
}
