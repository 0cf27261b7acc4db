package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jgivc/lmsexport/internal/common"
	"github.com/jgivc/lmsexport/internal/entity"
)

const (
	serviceName = "catalog"
)

type Client interface {
	ListEnrollments(ctx context.Context) ([]entity.Enrollment, error)
	GetCourse(ctx context.Context, courseID int64) (*entity.Course, error)
}

type ClientFactory func(creds *entity.Credentials) (Client, error)

type catalogService struct {
	newClient  ClientFactory
	minCourses int
	log        *slog.Logger
}

func NewCatalogService(newClient ClientFactory, minCourses int, log *slog.Logger) *catalogService {
	return &catalogService{
		newClient:  newClient,
		minCourses: minCourses,
		log:        log.With(slog.String("service", serviceName)),
	}
}

/*
Courses lists every course the caller is enrolled in, unpublished ones included.
Courses that answer 403 or 404 are skipped, any other failure aborts the build.
*/
func (s *catalogService) Courses(ctx context.Context, creds *entity.Credentials) ([]*entity.Course, error) {
	cl, err := s.newClient(creds)
	if err != nil {
		return nil, fmt.Errorf("cannot create lms client: %w", err)
	}

	enrollments, err := cl.ListEnrollments(ctx)
	if err != nil {
		s.log.Error("Cannot list enrollments", slog.Any("error", err))

		return nil, fmt.Errorf("cannot list enrollments: %w", err)
	}

	ids := uniqueCourseIDs(enrollments)
	s.log.Debug("Found enrollments", slog.Int("enrollments", len(enrollments)), slog.Int("courses", len(ids)))

	courses := make([]*entity.Course, 0, len(ids))
	for _, id := range ids {
		course, err := cl.GetCourse(ctx, id)
		if err != nil {
			if common.IsStatus(err, http.StatusForbidden, http.StatusNotFound) {
				s.log.Info("Skip inaccessible course", slog.Int64("course_id", id), slog.Any("error", err))

				continue
			}

			s.log.Error("Cannot get course", slog.Int64("course_id", id), slog.Any("error", err))

			return nil, fmt.Errorf("cannot get course %d: %w", id, err)
		}

		courses = append(courses, course)
	}

	if len(courses) < s.minCourses {
		s.log.Warn("Few courses found", slog.Int("count", len(courses)), slog.Int("threshold", s.minCourses))
	}

	return courses, nil
}

func uniqueCourseIDs(enrollments []entity.Enrollment) []int64 {
	seen := make(map[int64]struct{}, len(enrollments))
	ids := make([]int64, 0, len(enrollments))

	for _, e := range enrollments {
		if _, exists := seen[e.CourseID]; exists {
			continue
		}

		seen[e.CourseID] = struct{}{}
		ids = append(ids, e.CourseID)
	}

	return ids
}
