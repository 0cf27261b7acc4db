package cli

import (
	"strings"
	"time"

	"github.com/jgivc/lmsexport/internal/entity"
	"github.com/spf13/cobra"
)

var timeNow = time.Now

type courseFilter struct {
	published bool
	current   bool
	term      string
}

func (f *courseFilter) apply(courses []*entity.Course, now time.Time) []*entity.Course {
	var out []*entity.Course
	for _, c := range courses {
		if f.published && !c.Published {
			continue
		}

		if f.current && !c.Term.Current(now) {
			continue
		}

		if f.term != "" && !strings.Contains(strings.ToLower(c.TermName()), strings.ToLower(f.term)) {
			continue
		}

		out = append(out, c)
	}

	return out
}

func newCoursesCmd(opts *rootOptions) *cobra.Command {
	var (
		baseURL string
		token   string
		filter  courseFilter
	)

	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List the courses of the token owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, err := opts.services(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			courses, err := s.Catalog.Courses(cmd.Context(), credentials(baseURL, token))
			if err != nil {
				return err
			}

			courses = filter.apply(courses, timeNow())
			for _, c := range courses {
				state := "published"
				if !c.Published {
					state = "unpublished"
				}

				cmd.Printf("%d\t%s\t%s\t%s\t%s\n", c.ID, c.CourseCode, c.Name, c.TermName(), state)
			}

			cmd.Printf("%d courses\n", len(courses))

			return nil
		},
	}

	addCredentialFlags(cmd, &baseURL, &token)
	cmd.Flags().BoolVar(&filter.published, "published", false, "Only published courses")
	cmd.Flags().BoolVar(&filter.current, "current", false, "Only courses of a term running now")
	cmd.Flags().StringVar(&filter.term, "term", "", "Only courses whose term name contains this text")

	return cmd
}
