package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/lmsexport/internal/adapter/lms"
	"github.com/jgivc/lmsexport/internal/config"
	"github.com/jgivc/lmsexport/internal/entity"
	httphandler "github.com/jgivc/lmsexport/internal/handler/http"
	"github.com/jgivc/lmsexport/internal/repository/job"
	"github.com/jgivc/lmsexport/internal/service/catalog"
	"github.com/jgivc/lmsexport/internal/service/export"
	"github.com/jgivc/lmsexport/internal/service/fetcher"
	"github.com/jgivc/lmsexport/internal/storage/progress"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

const (
	pingTimeout       = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Services is the export pipeline shared by the server and the cli.
type Services struct {
	Registry *progress.Registry
	Catalog  httphandler.CatalogService
	Export   httphandler.ExportService
	Jobs     httphandler.JobStatusService
}

// NewServices wires the pipeline. Job statuses live in redis when rdb is set, in memory otherwise.
func NewServices(cfg *config.Config, rdb *redis.Client, log *slog.Logger) *Services {
	newClient := func(creds *entity.Credentials) (*lms.Client, error) {
		return lms.NewClient(creds, &cfg.LMSConfig, log)
	}

	catalogFactory := func(creds *entity.Credentials) (catalog.Client, error) {
		cl, err := newClient(creds)
		if err != nil {
			return nil, err
		}

		return cl, nil
	}

	fetcherFactory := func(creds *entity.Credentials) (fetcher.Set, error) {
		cl, err := newClient(creds)
		if err != nil {
			return nil, err
		}

		return fetcher.NewSet(cl, log), nil
	}

	var repo interface {
		export.JobRepository
		httphandler.JobStatusService
	}
	if rdb != nil {
		repo = job.NewJobRepository(rdb, cfg.JobTTL, log)
	} else {
		repo = job.NewMemoryRepository()
	}

	registry := progress.NewRegistry(cfg.ExportConfig.ProgressBuffer, log)

	return &Services{
		Registry: registry,
		Catalog:  catalog.NewCatalogService(catalogFactory, cfg.LMSConfig.MinCourses, log),
		Export:   export.NewExportService(&cfg.ExportConfig, registry, fetcherFactory, repo, log),
		Jobs:     repo,
	}
}

func NewLogger(level config.LogLevel, w io.Writer) (*slog.Logger, error) {
	lo := &slog.HandlerOptions{}
	switch level {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		return nil, fmt.Errorf("unknown log level: %s", level)
	}

	return slog.New(slog.NewTextHandler(w, lo)), nil
}

// NewRouter registers every route of the service on a new mux.
func NewRouter(cfg *config.Config, s *Services, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	maxBody := cfg.HandlerConfig.MaxBodySize

	mux.Handle("POST /api/jobs", httphandler.NewJobHandler(log))
	mux.Handle("GET /api/jobs/{id}", httphandler.NewJobStatusHandler(s.Jobs, log))
	mux.Handle("GET /api/jobs/{id}/events", httphandler.NewEventsHandler(s.Registry, cfg.ExportConfig.KeepAlive, log))
	mux.Handle("GET /api/stats", httphandler.NewStatsHandler(s.Jobs, log))
	mux.Handle("POST /api/courses", httphandler.NewCoursesHandler(s.Catalog, maxBody, log))
	mux.Handle("POST /api/download", httphandler.NewDownloadHandler(cfg.ExportConfig.ArchiveName, s.Export, maxBody, log))

	if cfg.HandlerConfig.StaticDir != "" {
		mux.Handle("GET /", httphandler.NewStaticHandler(afero.NewBasePathFs(afero.NewOsFs(), cfg.HandlerConfig.StaticDir)))
	}

	return mux
}

type App struct {
	cfgPath string
	cfg     *config.Config
	srv     *http.Server
	rdb     *redis.Client
	log     *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	log, err := NewLogger(a.cfg.LogLevel, os.Stderr)
	if err != nil {
		panic(err)
	}
	a.log = log

	if a.cfg.RedisURL != "" {
		opt, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			panic(err)
		}

		a.rdb = redis.NewClient(opt)

		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		if _, err := a.rdb.Ping(ctx).Result(); err != nil {
			panic(err)
		}
	} else {
		log.Warn("No redis configured, job statuses are kept in memory")
	}

	services := NewServices(a.cfg, a.rdb, log)

	// No write timeout: archives are streamed for as long as the export runs.
	a.srv = &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           NewRouter(a.cfg, services, log),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

func (a *App) Stop() {
	if a.srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Error("Cannot shutdown server", slog.Any("error", err))
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("Cannot close redis client", slog.Any("error", err))
		}
	}
}
