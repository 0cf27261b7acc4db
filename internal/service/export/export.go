package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jgivc/lmsexport/internal/adapter/mdadapter"
	"github.com/jgivc/lmsexport/internal/common"
	"github.com/jgivc/lmsexport/internal/config"
	"github.com/jgivc/lmsexport/internal/entity"
	"github.com/jgivc/lmsexport/internal/service/fetcher"
	"github.com/jgivc/lmsexport/internal/storage/archive"
	"github.com/jgivc/lmsexport/internal/storage/progress"
)

type JobRepository interface {
	Save(ctx context.Context, status *entity.JobStatus) error
}

type ManifestRenderer interface {
	Render(m *mdadapter.Manifest) ([]byte, []byte, error)
}

type FetcherFactory func(creds *entity.Credentials) (fetcher.Set, error)

// Export is a validated request bound to its progress channel.
type Export struct {
	Job      *entity.Job
	ch       *progress.Channel
	fetchers fetcher.Set
}

type exportService struct {
	registry    *progress.Registry
	newFetchers FetcherFactory
	repo        JobRepository
	renderer    ManifestRenderer
	log         *slog.Logger
}

func NewExportService(cfg *config.ExportConfig, registry *progress.Registry, newFetchers FetcherFactory,
	repo JobRepository, log *slog.Logger) *exportService {
	s := &exportService{
		registry:    registry,
		newFetchers: newFetchers,
		repo:        repo,
		log:         log.With(slog.String("item", "ExportService")),
	}

	if cfg.Manifest {
		s.renderer = mdadapter.NewManifestRenderer()
	}

	return s
}

// Prepare checks the request before anything is written to the client.
func (s *exportService) Prepare(ctx context.Context, req *entity.ExportRequest) (*Export, error) {
	if req.JobID == "" {
		return nil, common.ErrMissingJobID
	}

	if !req.Credentials.Valid() {
		return nil, common.ErrMissingCredentials
	}

	total := req.Selection.Total()
	if total < 1 {
		return nil, common.ErrEmptySelection
	}

	fetchers, err := s.newFetchers(&req.Credentials)
	if err != nil {
		return nil, fmt.Errorf("cannot create fetchers: %w", err)
	}

	ch, err := s.registry.Get(req.JobID)
	if err != nil {
		return nil, fmt.Errorf("cannot get progress channel for job %s: %w", req.JobID, err)
	}

	if err := ch.Claim(); err != nil {
		return nil, fmt.Errorf("job %s is already running: %w", req.JobID, err)
	}

	creds := req.Credentials

	return &Export{
		Job: &entity.Job{
			ID:          req.JobID,
			Credentials: &creds,
			Selection:   req.Selection,
			Total:       total,
			StartedAt:   time.Now(),
		},
		ch:       ch,
		fetchers: fetchers,
	}, nil
}

/*
Run streams the archive of exp into w. Units are processed one by one in selection order
and a progress event follows every unit, failed or not. When ctx is canceled or w stops
accepting data the channel is closed without the done event and ErrExportCanceled is returned.
*/
func (s *exportService) Run(ctx context.Context, exp *Export, w io.Writer) error {
	job := exp.Job
	log := s.log.With(slog.String("job_id", job.ID))

	status := &entity.JobStatus{
		ID:        job.ID,
		State:     entity.JobStateRunning,
		Total:     job.Total,
		StartedAt: job.StartedAt,
	}
	s.save(ctx, log, status)

	aw := archive.NewWriter(w, log)

	var manifest *mdadapter.Manifest
	if s.renderer != nil {
		manifest = mdadapter.NewManifest(job.ID, job.StartedAt)
	}

	log.Info("Export started", slog.Int("total", job.Total))

	for _, unit := range job.Selection.Units() {
		if err := ctx.Err(); err != nil {
			return s.cancel(exp, status, log, err)
		}

		msg, err := s.exportUnit(ctx, exp.fetchers, unit, aw, manifest, status, log)
		if err != nil {
			return s.cancel(exp, status, log, err)
		}

		job.Done++
		status.Done = job.Done

		s.publish(ctx, exp.ch, log, &entity.Event{
			Name: entity.EventProgress,
			Data: &entity.ProgressEvent{Done: job.Done, Total: job.Total, Message: msg},
		})
		s.save(ctx, log, status)
	}

	if manifest != nil {
		if err := s.addManifest(aw, manifest); err != nil {
			return s.cancel(exp, status, log, err)
		}
	}

	if err := aw.Close(); err != nil {
		return s.cancel(exp, status, log, err)
	}

	s.publish(ctx, exp.ch, log, &entity.Event{Name: entity.EventDone, Data: &entity.DoneEvent{}})
	exp.ch.Finish()

	status.State = entity.JobStateDone
	status.FinishedAt = time.Now()
	s.save(context.WithoutCancel(ctx), log, status)

	log.Info("Export finished", slog.Int("files", status.Files), slog.Int("failures", status.Failures),
		slog.Int64("bytes", aw.Size()))

	return nil
}

// exportUnit returns the progress message of the unit. A returned error is fatal for the job.
func (s *exportService) exportUnit(ctx context.Context, fetchers fetcher.Set, unit entity.Unit, aw *archive.Writer,
	manifest *mdadapter.Manifest, status *entity.JobStatus, log *slog.Logger) (string, error) {
	log = log.With(slog.String("unit", unit.String()))

	if manifest != nil {
		manifest.Section(unit.String())
	}

	failed := func(err error) {
		status.Failures++
		if manifest != nil {
			manifest.AddFailure(fmt.Sprintf("%s: %v", unit, err))
		}
	}

	f, exists := fetchers[unit.Category]
	if !exists {
		err := fmt.Errorf("%w: %s", common.ErrUnknownCategory, unit.Category)
		failed(err)

		return fmt.Sprintf("Failed %s: %v", unit, err), nil
	}

	entries, err := f.Enumerate(ctx, unit.CourseID)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		log.Warn("Cannot list unit", slog.Any("error", err))
		failed(err)

		return fmt.Sprintf("Failed %s: %v", unit, err), nil
	}

	var files, failures int

	for entry, err := range entries {
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}

			log.Warn("Cannot resolve item", slog.Any("error", err))
			failures++
			failed(err)

			continue
		}

		name, err := aw.Add(ctx, entry)
		if err != nil {
			var entryErr *archive.EntryError
			if !errors.As(err, &entryErr) {
				return "", err
			}

			log.Warn("Cannot add item", slog.String("path", entry.Path), slog.Any("error", err))
			failures++
			failed(err)

			continue
		}

		files++
		status.Files++
		if manifest != nil {
			manifest.AddFile(name)
		}
	}

	if failures > 0 {
		return fmt.Sprintf("Exported %s: %d files, %d failed", unit, files, failures), nil
	}

	return fmt.Sprintf("Exported %s: %d files", unit, files), nil
}

func (s *exportService) addManifest(aw *archive.Writer, manifest *mdadapter.Manifest) error {
	md, page, err := s.renderer.Render(manifest)
	if err != nil {
		s.log.Error("Cannot render manifest", slog.Any("error", err))

		return nil
	}

	if _, err := aw.AddBytes(mdadapter.ManifestMarkdownName, md); err != nil {
		return err
	}

	if _, err := aw.AddBytes(mdadapter.ManifestHTMLName, page); err != nil {
		return err
	}

	return nil
}

func (s *exportService) cancel(exp *Export, status *entity.JobStatus, log *slog.Logger, cause error) error {
	exp.ch.Finish()

	status.State = entity.JobStateCanceled
	status.FinishedAt = time.Now()
	s.save(context.Background(), log, status)

	log.Info("Export canceled", slog.Int("done", status.Done), slog.Int("total", status.Total),
		slog.Any("cause", cause))

	return fmt.Errorf("%w: %w", common.ErrExportCanceled, cause)
}

// publish never fails the export; a subscriber that went away only loses its events.
func (s *exportService) publish(ctx context.Context, ch *progress.Channel, log *slog.Logger, ev *entity.Event) {
	if err := ch.Publish(ctx, ev); err != nil {
		log.Debug("Cannot publish event", slog.String("event", ev.Name), slog.Any("error", err))
	}
}

func (s *exportService) save(ctx context.Context, log *slog.Logger, status *entity.JobStatus) {
	if err := s.repo.Save(ctx, status); err != nil {
		log.Error("Cannot save job status", slog.Any("error", err))
	}
}
