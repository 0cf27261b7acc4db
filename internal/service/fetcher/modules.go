package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgivc/lmsexport/internal/entity"
)

type modulesFetcher struct {
	base
	log *slog.Logger
}

func (f *modulesFetcher) Category() entity.Category {
	return entity.CategoryModules
}

func (f *modulesFetcher) Enumerate(ctx context.Context, courseID int64) (Entries, error) {
	modules, err := f.cl.ListModules(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("cannot list modules: %w", err)
	}

	f.log.Debug("Found modules", slog.Int64("course_id", courseID), slog.Int("count", len(modules)))

	return func(yield func(*entity.ArchiveEntry, error) bool) {
		for _, module := range modules {
			items := module.Items
			if items == nil && module.ItemsCount > 0 {
				items, err = f.cl.ListModuleItems(ctx, courseID, module.ID)
				if err != nil {
					if !yield(nil, fmt.Errorf("module %q: %w", module.Name, err)) {
						return
					}

					continue
				}
			}

			for _, item := range items {
				if item.Type != entity.ModuleItemTypeFile || item.ContentID == 0 {
					continue
				}

				if ctx.Err() != nil {
					return
				}

				file, err := f.cl.GetFile(ctx, courseID, item.ContentID)
				if err != nil {
					if !yield(nil, fmt.Errorf("module %q: %w", module.Name, err)) {
						return
					}

					continue
				}

				if !yield(f.entry(file, entity.EntryPath(courseID, entity.CategoryModules, module.Name, file.Name()))) {
					return
				}
			}
		}
	}, nil
}
