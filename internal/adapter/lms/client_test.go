package lms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jgivc/lmsexport/internal/common"
	"github.com/jgivc/lmsexport/internal/config"
	"github.com/jgivc/lmsexport/internal/entity"
	"github.com/stretchr/testify/require"
)

const testToken = "secret-token"

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.LMSConfig.RequestsPerSecond = 0

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	cl, err := NewClient(&entity.Credentials{BaseURL: srv.URL, Token: testToken}, &cfg.LMSConfig, log)
	require.NoError(t, err)

	return cl
}

func TestParseNextLink(t *testing.T) {
	testCases := []struct {
		name     string
		header   string
		expected string
	}{
		{name: "Scenario 1: Empty", header: "", expected: ""},
		{
			name:     "Scenario 2: Next in the middle",
			header:   `<https://lms/api/v1/x?page=1>; rel="current", <https://lms/api/v1/x?page=2>; rel="next", <https://lms/api/v1/x?page=5>; rel="last"`,
			expected: "https://lms/api/v1/x?page=2",
		},
		{
			name:     "Scenario 3: Last page",
			header:   `<https://lms/api/v1/x?page=5>; rel="current", <https://lms/api/v1/x?page=1>; rel="first"`,
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, ParseNextLink(tc.header))
		})
	}
}

func TestPaginateFollowsNextLinks(t *testing.T) {
	var srv *httptest.Server
	pages := map[string][]int{
		"1": {1, 2, 3},
		"2": {4, 5},
		"3": {6},
	}

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))

		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}

		if page != "3" {
			next := fmt.Sprintf("%s%s?page=%d", srv.URL, r.URL.Path, page[0]-'0'+1)
			w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next", <%s?page=1>; rel="first"`, next, srv.URL+r.URL.Path))
		}

		var ids []string
		for _, id := range pages[page] {
			ids = append(ids, fmt.Sprintf(`{"course_id": %d}`, id))
		}
		fmt.Fprintf(w, "[%s]", strings.Join(ids, ","))
	}))
	defer srv.Close()

	cl := newTestClient(t, srv)

	items, err := Paginate[entity.Enrollment](context.Background(), cl, cl.endpoint(nil, "users", "self", "enrollments"))
	require.NoError(t, err)
	require.Len(t, items, 6)
	for i, item := range items {
		require.Equal(t, int64(i+1), item.CourseID)
	}
}

func TestPaginateFailedPageAborts(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.Header().Set("Link", fmt.Sprintf(`<%s%s?page=2>; rel="next"`, srv.URL, r.URL.Path))
		fmt.Fprint(w, `[{"course_id": 1}]`)
	}))
	defer srv.Close()

	cl := newTestClient(t, srv)

	items, err := Paginate[entity.Enrollment](context.Background(), cl, cl.endpoint(nil, "x"))
	require.Nil(t, items)
	require.True(t, common.IsStatus(err, http.StatusInternalServerError))
}

func TestPaginateDecodeErrorHidesQuery(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `not json`)

			return
		}

		w.Header().Set("Link", fmt.Sprintf(`<%s%s?page=2&verifier=signed>; rel="next"`, srv.URL, r.URL.Path))
		fmt.Fprint(w, `[{"course_id": 1}]`)
	}))
	defer srv.Close()

	cl := newTestClient(t, srv)

	_, err := Paginate[entity.Enrollment](context.Background(), cl, cl.endpoint(nil, "x"))
	require.ErrorContains(t, err, "cannot decode page "+srv.URL+"/api/v1/x")
	require.NotContains(t, err.Error(), "verifier")
}

func TestPaginateSingleObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 9, "assignment_id": 4, "attachments": [{"id": 1, "display_name": "essay.pdf", "url": "http://x/1"}]}`)
	}))
	defer srv.Close()

	cl := newTestClient(t, srv)

	subs, err := cl.ListOwnSubmissions(context.Background(), 1, 4)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "essay.pdf", subs[0].Attachments[0].DisplayName)
}

func TestListEnrollmentsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/users/self/enrollments", r.URL.Path)

		q := r.URL.Query()
		require.Equal(t, []string{"active", "completed", "inactive"}, q["state[]"])
		require.Equal(t, []string{"StudentEnrollment"}, q["type[]"])
		require.Equal(t, "100", q.Get("per_page"))

		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	cl := newTestClient(t, srv)

	enrollments, err := cl.ListEnrollments(context.Background())
	require.NoError(t, err)
	require.Empty(t, enrollments)
}

func TestGetCourse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "term", r.URL.Query().Get("include[]"))

		switch r.URL.Path {
		case "/api/v1/courses/1":
			fmt.Fprint(w, `{"id": 1, "name": "Physics", "course_code": "PH1", "workflow_state": "available",
				"term": {"name": "Fall 2025", "start_at": "2025-09-01T00:00:00Z", "end_at": null}}`)
		case "/api/v1/courses/2":
			fmt.Fprint(w, `{"id": 2, "name": "Draft", "course_code": "DR", "workflow_state": "unpublished", "term": {"name": null}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cl := newTestClient(t, srv)

	crs, err := cl.GetCourse(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, crs.Published)
	require.Equal(t, "Fall 2025", crs.TermName())
	require.NotNil(t, crs.Term.StartAt)
	require.Nil(t, crs.Term.EndAt)

	crs, err = cl.GetCourse(context.Background(), 2)
	require.NoError(t, err)
	require.False(t, crs.Published)
	require.Nil(t, crs.Term)

	_, err = cl.GetCourse(context.Background(), 3)
	require.True(t, common.IsStatus(err, http.StatusNotFound))
}

func TestOpenStreamsBody(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "file content")
	}))
	defer srv.Close()

	cl := newTestClient(t, srv)

	rc, err := cl.Open(context.Background(), srv.URL+"/files/1/download?verifier=abc")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "file content", string(data))
	require.Equal(t, int32(1), hits.Load())
}

func TestNormalizeBaseURL(t *testing.T) {
	testCases := []struct {
		name        string
		raw         string
		expected    string
		expectError bool
	}{
		{name: "Scenario 1: Host only", raw: "https://lms.example.edu", expected: "https://lms.example.edu/api/v1"},
		{name: "Scenario 2: Trailing slash", raw: "https://lms.example.edu/api/v1/", expected: "https://lms.example.edu/api/v1"},
		{name: "Scenario 3: Relative", raw: "lms.example.edu", expectError: true},
		{name: "Scenario 4: Bad scheme", raw: "ftp://lms.example.edu", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := normalizeBaseURL(tc.raw)
			if tc.expectError {
				require.ErrorIs(t, err, common.ErrInvalidURL)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, u.String())
		})
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()

	_, err := NewClient(&entity.Credentials{BaseURL: "https://lms"}, &cfg.LMSConfig, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.ErrorIs(t, err, common.ErrMissingCredentials)
}

func TestOpenDropsTokenOnRedirectToOtherHost(t *testing.T) {
	var storageAuth atomic.Value
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		storageAuth.Store(r.Header.Get("Authorization"))

		if r.Header.Get("Authorization") != "" {
			http.Error(w, "only one auth mechanism allowed", http.StatusBadRequest)

			return
		}

		fmt.Fprint(w, "file body")
	}))
	defer storage.Close()

	var lmsAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lmsAuth.Store(r.Header.Get("Authorization"))
		http.Redirect(w, r, storage.URL+"/files/1/download?verifier=abc", http.StatusFound)
	}))
	defer srv.Close()

	cl := newTestClient(t, srv)

	rc, err := cl.Open(context.Background(), srv.URL+"/files/1/download")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "file body", string(body))

	require.Equal(t, "Bearer "+testToken, lmsAuth.Load())
	require.Equal(t, "", storageAuth.Load())
}

func TestPaginateNextLinkToOtherHost(t *testing.T) {
	var otherAuth atomic.Value
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		otherAuth.Store(r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"course_id": 2}]`)
	}))
	defer other.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))

		w.Header().Set("Link", fmt.Sprintf(`<%s/api/v1/x?page=2>; rel="next"`, other.URL))
		fmt.Fprint(w, `[{"course_id": 1}]`)
	}))
	defer srv.Close()

	cl := newTestClient(t, srv)

	items, err := Paginate[entity.Enrollment](context.Background(), cl, cl.endpoint(nil, "x"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "", otherAuth.Load())
}
