package lms

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jgivc/lmsexport/internal/entity"
)

const workflowStateUnpublished = "unpublished"

type course struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	CourseCode    string       `json:"course_code"`
	WorkflowState string       `json:"workflow_state"`
	Term          *entity.Term `json:"term"`
	SyllabusBody  string       `json:"syllabus_body"`
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

// ListEnrollments lists the caller's own enrollments in the configured states.
func (c *Client) ListEnrollments(ctx context.Context) ([]entity.Enrollment, error) {
	q := c.perPage(nil)
	q.Add("type[]", c.cfg.EnrollmentType)
	for _, state := range c.cfg.EnrollmentStates {
		q.Add("state[]", state)
	}

	enrollments, err := Paginate[entity.Enrollment](ctx, c, c.endpoint(q, "users", "self", "enrollments"))
	if err != nil {
		return nil, fmt.Errorf("cannot list enrollments: %w", err)
	}

	return enrollments, nil
}

func (c *Client) GetCourse(ctx context.Context, courseID int64) (*entity.Course, error) {
	q := url.Values{"include[]": {"term"}}

	crs, err := getOne[course](ctx, c, c.endpoint(q, "courses", itoa(courseID)))
	if err != nil {
		return nil, fmt.Errorf("cannot get course %d: %w", courseID, err)
	}

	term := crs.Term
	if term != nil && term.Name == "" && term.StartAt == nil && term.EndAt == nil {
		term = nil
	}

	return &entity.Course{
		ID:         crs.ID,
		Name:       crs.Name,
		CourseCode: crs.CourseCode,
		Term:       term,
		Published:  crs.WorkflowState != workflowStateUnpublished,
	}, nil
}

func (c *Client) ListModules(ctx context.Context, courseID int64) ([]entity.Module, error) {
	q := c.perPage(url.Values{"include[]": {"items"}})

	modules, err := Paginate[entity.Module](ctx, c, c.endpoint(q, "courses", itoa(courseID), "modules"))
	if err != nil {
		return nil, fmt.Errorf("cannot list modules of course %d: %w", courseID, err)
	}

	return modules, nil
}

func (c *Client) ListModuleItems(ctx context.Context, courseID, moduleID int64) ([]entity.ModuleItem, error) {
	items, err := Paginate[entity.ModuleItem](ctx, c, c.endpoint(c.perPage(nil), "courses", itoa(courseID), "modules", itoa(moduleID), "items"))
	if err != nil {
		return nil, fmt.Errorf("cannot list items of module %d: %w", moduleID, err)
	}

	return items, nil
}

func (c *Client) GetFile(ctx context.Context, courseID, fileID int64) (*entity.File, error) {
	file, err := getOne[entity.File](ctx, c, c.endpoint(nil, "courses", itoa(courseID), "files", itoa(fileID)))
	if err != nil {
		return nil, fmt.Errorf("cannot get file %d: %w", fileID, err)
	}

	return file, nil
}

// GetSyllabus returns the html body of the course syllabus page.
func (c *Client) GetSyllabus(ctx context.Context, courseID int64) (string, error) {
	q := url.Values{"include[]": {"syllabus_body"}}

	crs, err := getOne[course](ctx, c, c.endpoint(q, "courses", itoa(courseID)))
	if err != nil {
		return "", fmt.Errorf("cannot get syllabus of course %d: %w", courseID, err)
	}

	return crs.SyllabusBody, nil
}

func (c *Client) ListPages(ctx context.Context, courseID int64) ([]entity.Page, error) {
	pages, err := Paginate[entity.Page](ctx, c, c.endpoint(c.perPage(nil), "courses", itoa(courseID), "pages"))
	if err != nil {
		return nil, fmt.Errorf("cannot list pages of course %d: %w", courseID, err)
	}

	return pages, nil
}

func (c *Client) GetPage(ctx context.Context, courseID int64, pageURL string) (*entity.Page, error) {
	page, err := getOne[entity.Page](ctx, c, c.endpoint(nil, "courses", itoa(courseID), "pages", pageURL))
	if err != nil {
		return nil, fmt.Errorf("cannot get page %q: %w", pageURL, err)
	}

	return page, nil
}

func (c *Client) ListAssignments(ctx context.Context, courseID int64) ([]entity.Assignment, error) {
	assignments, err := Paginate[entity.Assignment](ctx, c, c.endpoint(c.perPage(nil), "courses", itoa(courseID), "assignments"))
	if err != nil {
		return nil, fmt.Errorf("cannot list assignments of course %d: %w", courseID, err)
	}

	return assignments, nil
}

// ListOwnSubmissions returns the caller's submission records for an assignment.
func (c *Client) ListOwnSubmissions(ctx context.Context, courseID, assignmentID int64) ([]entity.Submission, error) {
	q := url.Values{"include[]": {"submission_comments"}}

	subs, err := Paginate[entity.Submission](ctx, c, c.endpoint(q, "courses", itoa(courseID), "assignments", itoa(assignmentID), "submissions", "self"))
	if err != nil {
		return nil, fmt.Errorf("cannot get submission for assignment %d: %w", assignmentID, err)
	}

	return subs, nil
}
