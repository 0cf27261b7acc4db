package cli

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jgivc/lmsexport/internal/entity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLMSServer(t *testing.T) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users/self/enrollments":
			fmt.Fprint(w, `[{"course_id":1},{"course_id":2},{"course_id":1}]`)
		case "/api/v1/courses/1":
			fmt.Fprint(w, `{"id":1,"name":"Algebra","course_code":"ALG","workflow_state":"available","term":{"name":"Fall 2026"}}`)
		case "/api/v1/courses/2":
			fmt.Fprint(w, `{"id":2,"name":"History","course_code":"HIS","workflow_state":"unpublished","term":{"name":"Spring 2025"}}`)
		case "/api/v1/courses/1/modules":
			fmt.Fprint(w, `[{"id":3,"name":"Week 1","items_count":1,"items":[{"id":4,"title":"Slides","type":"File","content_id":50}]}]`)
		case "/api/v1/courses/1/files/50":
			fmt.Fprintf(w, `{"id":50,"display_name":"slides.pdf","url":"%s/download/50"}`, srv.URL)
		case "/download/50":
			fmt.Fprint(w, "slides")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(fs)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"-c", "/missing.yml"}, args...))

	err := cmd.Execute()

	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := execute(t, afero.NewMemMapFs(), "version")

	assert.NoError(t, err)
	assert.Contains(t, out, "lmsexport version test-version-1.0.0")
}

func TestCoursesCmd(t *testing.T) {
	srv := newLMSServer(t)

	testCases := []struct {
		name     string
		args     []string
		contains []string
		excludes []string
	}{
		{
			name:     "Scenario 1: All courses",
			args:     nil,
			contains: []string{"1\tALG\tAlgebra\tFall 2026\tpublished", "2\tHIS\tHistory\tSpring 2025\tunpublished", "2 courses"},
		},
		{
			name:     "Scenario 2: Published only",
			args:     []string{"--published"},
			contains: []string{"Algebra", "1 courses"},
			excludes: []string{"History"},
		},
		{
			name:     "Scenario 3: Term filter",
			args:     []string{"--term", "spring"},
			contains: []string{"History"},
			excludes: []string{"Algebra"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"courses", "--url", srv.URL, "--token", "t"}, tc.args...)
			out, err := execute(t, afero.NewMemMapFs(), args...)
			require.NoError(t, err)

			for _, s := range tc.contains {
				require.Contains(t, out, s)
			}

			for _, s := range tc.excludes {
				require.NotContains(t, out, s)
			}
		})
	}
}

func TestCoursesCmdMissingCredentials(t *testing.T) {
	t.Setenv(envCanvasURL, "")
	t.Setenv(envCanvasToken, "")

	_, err := execute(t, afero.NewMemMapFs(), "courses")
	require.Error(t, err)
}

func TestExportCmd(t *testing.T) {
	srv := newLMSServer(t)
	fs := afero.NewMemMapFs()

	out, err := execute(t, fs, "export", "--url", srv.URL, "--token", "t", "--modules", "1", "-o", "/out/course.zip")
	require.NoError(t, err)
	require.Contains(t, out, "[1/1] Exported modules of course 1: 1 files")
	require.Contains(t, out, "Archive written to /out/course.zip")

	data, err := afero.ReadFile(fs, "/out/course.zip")
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	require.Equal(t, "1/Modules/Week 1/slides.pdf", zr.File[0].Name)
}

func TestExportCmdAll(t *testing.T) {
	srv := newLMSServer(t)
	fs := afero.NewMemMapFs()

	out, err := execute(t, fs, "export", "--url", srv.URL, "--token", "t", "--all", "--published", "-o", "/all.zip")
	require.NoError(t, err)

	// Only course 1 is published. Its pages and assignments are not served, so those units fail.
	require.Contains(t, out, "[1/4] Exported modules of course 1: 1 files")
	require.Contains(t, out, "[4/4] Failed submissions of course 1")

	exists, err := afero.Exists(fs, "/all.zip")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestExportCmdNothingSelected(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := execute(t, fs, "export", "--url", "https://lms.example.edu", "--token", "t", "-o", "/none.zip")
	require.ErrorContains(t, err, "--all")

	exists, err := afero.Exists(fs, "/none.zip")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCourseFilter(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	start, end := now.AddDate(0, -1, 0), now.AddDate(0, 2, 0)

	courses := []*entity.Course{
		{ID: 1, Published: true, Term: &entity.Term{Name: "Fall 2026", StartAt: &start, EndAt: &end}},
		{ID: 2, Published: true, Term: &entity.Term{Name: "Spring 2025"}},
		{ID: 3, Published: false},
	}

	ids := func(cs []*entity.Course) []int64 {
		var out []int64
		for _, c := range cs {
			out = append(out, c.ID)
		}

		return out
	}

	require.Equal(t, []int64{1, 2, 3}, ids((&courseFilter{}).apply(courses, now)))
	require.Equal(t, []int64{1, 2}, ids((&courseFilter{published: true}).apply(courses, now)))
	require.Equal(t, []int64{1}, ids((&courseFilter{current: true}).apply(courses, now)))
	require.Equal(t, []int64{2}, ids((&courseFilter{term: "2025"}).apply(courses, now)))
}
