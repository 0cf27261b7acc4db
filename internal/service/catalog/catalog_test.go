package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/jgivc/lmsexport/internal/common"
	"github.com/jgivc/lmsexport/internal/entity"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	enrollments    []entity.Enrollment
	enrollmentsErr error
	statuses       map[int64]int
	fetched        []int64
}

func (f *fakeClient) ListEnrollments(ctx context.Context) ([]entity.Enrollment, error) {
	return f.enrollments, f.enrollmentsErr
}

func (f *fakeClient) GetCourse(ctx context.Context, courseID int64) (*entity.Course, error) {
	f.fetched = append(f.fetched, courseID)

	if status, exists := f.statuses[courseID]; exists {
		return nil, fmt.Errorf("cannot get course %d: %w", courseID, &common.HTTPError{StatusCode: status, URL: "http://lms"})
	}

	return &entity.Course{ID: courseID, Name: fmt.Sprintf("Course %d", courseID), Published: courseID%2 == 0}, nil
}

func newService(cl *fakeClient) *catalogService {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	return NewCatalogService(func(creds *entity.Credentials) (Client, error) {
		return cl, nil
	}, 1, log)
}

var creds = &entity.Credentials{BaseURL: "https://lms", Token: "t"}

func TestCoursesDeduplicates(t *testing.T) {
	cl := &fakeClient{
		enrollments: []entity.Enrollment{{CourseID: 1}, {CourseID: 2}, {CourseID: 1}},
	}

	courses, err := newService(cl).Courses(context.Background(), creds)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, cl.fetched)
	require.Len(t, courses, 2)
	require.False(t, courses[0].Published, "unpublished courses are kept")
}

func TestCoursesToleratesMissingCourses(t *testing.T) {
	cl := &fakeClient{
		enrollments: []entity.Enrollment{{CourseID: 1}, {CourseID: 2}, {CourseID: 3}},
		statuses:    map[int64]int{1: http.StatusNotFound, 3: http.StatusForbidden},
	}

	courses, err := newService(cl).Courses(context.Background(), creds)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, int64(2), courses[0].ID)
}

func TestCoursesAbortsOnServerError(t *testing.T) {
	cl := &fakeClient{
		enrollments: []entity.Enrollment{{CourseID: 1}, {CourseID: 2}},
		statuses:    map[int64]int{1: http.StatusInternalServerError},
	}

	courses, err := newService(cl).Courses(context.Background(), creds)
	require.Nil(t, courses)
	require.True(t, common.IsStatus(err, http.StatusInternalServerError))
	require.Equal(t, []int64{1}, cl.fetched)
}

func TestCoursesEnrollmentFailure(t *testing.T) {
	cl := &fakeClient{enrollmentsErr: &common.HTTPError{StatusCode: http.StatusUnauthorized}}

	_, err := newService(cl).Courses(context.Background(), creds)
	require.True(t, common.IsStatus(err, http.StatusUnauthorized))
}

func TestCoursesEmptyIsNotAnError(t *testing.T) {
	courses, err := newService(&fakeClient{}).Courses(context.Background(), creds)
	require.NoError(t, err)
	require.Empty(t, courses)
}
