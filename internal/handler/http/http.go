package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/lmsexport/internal/common"
	"github.com/jgivc/lmsexport/internal/entity"
	"github.com/jgivc/lmsexport/internal/service/export"
	"github.com/jgivc/lmsexport/internal/storage/progress"
	"github.com/spf13/afero"
)

var (
	idRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

type CatalogService interface {
	Courses(ctx context.Context, creds *entity.Credentials) ([]*entity.Course, error)
}

type ProgressRegistry interface {
	Open(jobID string) (*progress.Channel, error)
}

type ExportService interface {
	Prepare(ctx context.Context, req *entity.ExportRequest) (*export.Export, error)
	Run(ctx context.Context, exp *export.Export, w io.Writer) error
}

type JobStatusService interface {
	Get(ctx context.Context, id string) (*entity.JobStatus, error)
	Counters(ctx context.Context) (map[string]int64, error)
}

func NewJobHandler(log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "JobHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		log.Debug("New job id", slog.String("job_id", id))

		writeJSON(w, log, map[string]string{"job_id": id})
	}
}

/*
NewEventsHandler opens the progress channel of a job and streams it as server-sent events.
The first event is "ready"; a download for the job is accepted only after it.
*/
func NewEventsHandler(registry ProgressRegistry, keepAlive time.Duration, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "EventsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)

			return
		}

		ch, err := registry.Open(id)
		if err != nil {
			http.Error(w, "Job already has a progress stream", http.StatusConflict)

			return
		}
		defer ch.Detach()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if err := writeEvent(w, &entity.Event{Name: entity.EventReady, Data: map[string]string{"job_id": id}}); err != nil {
			log.Info("Cannot write event", slog.String("job_id", id), slog.Any("error", err))

			return
		}
		flusher.Flush()

		var tick <-chan time.Time
		if keepAlive > 0 {
			ticker := time.NewTicker(keepAlive)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case ev, ok := <-ch.Events():
				if !ok {
					log.Debug("Progress stream finished", slog.String("job_id", id))

					return
				}

				if err := writeEvent(w, ev); err != nil {
					log.Info("Cannot write event", slog.String("job_id", id), slog.Any("error", err))

					return
				}
			case <-tick:
				if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
					return
				}
			case <-r.Context().Done():
				log.Info("Progress subscriber left", slog.String("job_id", id))

				return
			}

			flusher.Flush()
		}
	}
}

func NewCoursesHandler(srv CatalogService, maxBodySize int64, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "CoursesHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var creds entity.Credentials
		if err := decodeBody(w, r, maxBodySize, &creds); err != nil || !creds.Valid() {
			http.Error(w, "LMS url and token are required", http.StatusBadRequest)

			return
		}

		courses, err := srv.Courses(r.Context(), &creds)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrMissingCredentials), errors.Is(err, common.ErrInvalidURL):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				log.Error("Cannot get courses", slog.Any("error", err))
				http.Error(w, fmt.Sprintf("Cannot get courses: %s", err), http.StatusBadGateway)
			}

			return
		}

		if courses == nil {
			courses = []*entity.Course{}
		}

		writeJSON(w, log, courses)
	}
}

/*
NewDownloadHandler streams the archive of the selection. Once the response started
errors can only be logged; a client that drops the connection cancels the export.
*/
func NewDownloadHandler(archiveName string, srv ExportService, maxBodySize int64, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DownloadHandler"))
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": archiveName})

	return func(w http.ResponseWriter, r *http.Request) {
		var req entity.ExportRequest
		if err := decodeBody(w, r, maxBodySize, &req); err != nil {
			http.Error(w, fmt.Sprintf("Bad request: %s", err), http.StatusBadRequest)

			return
		}

		exp, err := srv.Prepare(r.Context(), &req)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrJobNotFound):
				http.Error(w, "No progress stream for job", http.StatusNotFound)
			case errors.Is(err, common.ErrJobExists):
				http.Error(w, "Job is already running", http.StatusConflict)
			case errors.Is(err, common.ErrMissingJobID),
				errors.Is(err, common.ErrMissingCredentials),
				errors.Is(err, common.ErrEmptySelection),
				errors.Is(err, common.ErrInvalidURL):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				log.Error("Cannot prepare export", slog.String("job_id", req.JobID), slog.Any("error", err))
				http.Error(w, "Cannot start export", http.StatusInternalServerError)
			}

			return
		}

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", disposition)
		w.WriteHeader(http.StatusOK)

		if err := srv.Run(r.Context(), exp, w); err != nil {
			if errors.Is(err, common.ErrExportCanceled) {
				log.Info("Download canceled", slog.String("job_id", req.JobID), slog.Any("error", err))

				return
			}

			log.Error("Cannot export", slog.String("job_id", req.JobID), slog.Any("error", err))
		}
	}
}

func NewJobStatusHandler(srv JobStatusService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "JobStatusHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		status, err := srv.Get(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrJobStatusNotFound):
				http.Error(w, "Cannot find job", http.StatusNotFound)
			default:
				log.Error("Cannot get job status", slog.String("job_id", id), slog.Any("error", err))
				http.Error(w, "Cannot get job", http.StatusInternalServerError)
			}

			return
		}

		writeJSON(w, log, status)
	}
}

func NewStatsHandler(srv JobStatusService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StatsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		counters, err := srv.Counters(r.Context())
		if err != nil {
			log.Error("Cannot get counters", slog.Any("error", err))
			http.Error(w, "Cannot get counters", http.StatusInternalServerError)

			return
		}

		writeJSON(w, log, counters)
	}
}

// NewStaticHandler serves the UI assets found in fs.
func NewStaticHandler(fs afero.Fs) http.Handler {
	return http.FileServer(afero.NewHttpFs(fs).Dir("/"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, maxBodySize int64, v any) error {
	if maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("cannot decode body: %w", err)
	}

	return nil
}

func writeEvent(w io.Writer, ev *entity.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("cannot marshal event %s: %w", ev.Name, err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
		return fmt.Errorf("cannot write event %s: %w", ev.Name, err)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Cannot write response", slog.Any("error", err))
	}
}
