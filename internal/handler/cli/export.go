package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jgivc/lmsexport/internal/common"
	"github.com/jgivc/lmsexport/internal/entity"
	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		baseURL string
		token   string
		output  string
		all     bool
		filter  courseFilter
	)

	ids := make(map[entity.Category]*[]int64, len(entity.Categories))

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the selected courses into a local zip archive",
		Long: `Exports files of the selected categories into a zip archive.
Course ids are given per category, or --all selects every category of every course
that passes the course filters.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, s, err := opts.services(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			creds := credentials(baseURL, token)

			selection := make(entity.Selection)
			for c, v := range ids {
				if len(*v) > 0 {
					selection[c] = *v
				}
			}

			if all {
				courses, err := s.Catalog.Courses(ctx, creds)
				if err != nil {
					return err
				}

				for _, course := range filter.apply(courses, timeNow()) {
					for _, c := range entity.Categories {
						selection[c] = append(selection[c], course.ID)
					}
				}
			}

			if output == "" {
				output = cfg.ExportConfig.ArchiveName
			}

			jobID := uuid.NewString()
			ch, err := s.Registry.Open(jobID)
			if err != nil {
				return err
			}
			defer ch.Detach()

			exp, err := s.Export.Prepare(ctx, &entity.ExportRequest{JobID: jobID, Selection: selection, Credentials: *creds})
			if err != nil {
				if errors.Is(err, common.ErrEmptySelection) {
					return fmt.Errorf("%w: use --all or one of the category flags", err)
				}

				return err
			}

			f, err := opts.fs.Create(output)
			if err != nil {
				return fmt.Errorf("cannot create %s: %w", output, err)
			}

			printed := make(chan struct{})
			go func() {
				defer close(printed)

				for ev := range ch.Events() {
					if p, ok := ev.Data.(*entity.ProgressEvent); ok {
						cmd.Printf("[%d/%d] %s\n", p.Done, p.Total, p.Message)
					}
				}
			}()

			runErr := s.Export.Run(ctx, exp, f)
			<-printed

			closeErr := f.Close()
			if runErr != nil {
				if err := opts.fs.Remove(output); err != nil {
					cmd.PrintErrf("Cannot remove %s: %s\n", output, err)
				}

				return runErr
			}

			if closeErr != nil {
				return fmt.Errorf("cannot close %s: %w", output, closeErr)
			}

			cmd.Printf("Archive written to %s\n", output)

			return nil
		},
	}

	addCredentialFlags(cmd, &baseURL, &token)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive file (default export.archive_name)")
	cmd.Flags().BoolVar(&all, "all", false, "Export every category of every course")
	cmd.Flags().BoolVar(&filter.published, "published", false, "With --all, only published courses")
	cmd.Flags().BoolVar(&filter.current, "current", false, "With --all, only courses of a term running now")
	cmd.Flags().StringVar(&filter.term, "term", "", "With --all, only courses whose term name contains this text")

	for _, c := range entity.Categories {
		v := new([]int64)
		ids[c] = v
		cmd.Flags().Int64SliceVar(v, string(c), nil, fmt.Sprintf("Course ids to export %s of", c))
	}

	return cmd
}
