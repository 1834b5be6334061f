// Package worker is the background job orchestration layer: bounded
// per-class concurrency, fire-and-forget task supervision, project-wide
// fan-out with partial-failure aggregation, the multi-phase export pipeline,
// and the crash-recovery sweeps.
package worker

import (
	"context"
	"mime"
	"path"
	"time"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
	"memoryreel-backend/internal/services"
	"memoryreel-backend/internal/storage"
)

// Store is the worker's view of the relational store. The db package
// implements it against postgres; tests use an in-memory fake.
type Store interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error
	CountPhotosInStatus(ctx context.Context, projectID uuid.UUID, status models.PhotoStatus) (int, error)
	ResetStalledProjects(ctx context.Context) (int, error)

	GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error)
	GetProjectPhotos(ctx context.Context, projectID uuid.UUID) ([]models.Photo, error)
	GetStylingPhotos(ctx context.Context) ([]models.Photo, error)
	UpdatePhotoStatus(ctx context.Context, id uuid.UUID, status models.PhotoStatus) error
	UpdatePhotoPromptStatus(ctx context.Context, id uuid.UUID, status models.PromptStatus) error
	SetPhotoPrompt(ctx context.Context, id uuid.UUID, prompt string) error
	MarkProjectPhotosStyling(ctx context.Context, projectID uuid.UUID) ([]models.Photo, error)
	SaveStyledResult(ctx context.Context, photoID uuid.UUID, styledPath, style string) error

	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	CreateVideo(ctx context.Context, video *models.Video) error
	UpdateVideoStatus(ctx context.Context, id uuid.UUID, status models.VideoStatus) error
	SetVideoReady(ctx context.Context, id uuid.UUID, videoPath string) error
	FailVideo(ctx context.Context, id uuid.UUID) error
	GetReadySceneVideos(ctx context.Context, projectID uuid.UUID) ([]models.Video, error)

	GetExport(ctx context.Context, id uuid.UUID) (*models.Export, error)
	StartExport(ctx context.Context, id uuid.UUID) error
	UpdateExportProgress(ctx context.Context, id uuid.UUID, step, detail string, percent int) error
	FinishExport(ctx context.Context, id uuid.UUID, filePath string, thumbnailPath *string) error
	FailExport(ctx context.Context, id uuid.UUID, errorMessage string) error
	ListExpiredExports(ctx context.Context, cutoff time.Time) ([]models.Export, error)
	DeleteExport(ctx context.Context, id uuid.UUID) error

	CreateJob(ctx context.Context, job *models.Job) error
	CompleteJob(ctx context.Context, id uuid.UUID) error
	FailJob(ctx context.Context, id uuid.UUID, errorMessage string) error
	ResetRunningJobs(ctx context.Context, reason string) (int, error)
	FailStuckJobs(ctx context.Context, defaultCutoff, exportCutoff time.Time, reason string) (int, error)
}

// StyleProvider restyles a photo. Implemented by services.GeminiService.
type StyleProvider interface {
	ApplyStyle(ctx context.Context, imageData []byte, mimeType, stylePrompt string) ([]byte, error)
}

// VideoProvider generates scene and transition clips. Implemented by
// services.KlingVideoService.
type VideoProvider interface {
	GenerateVideo(ctx context.Context, imageData []byte, mimeType, prompt string, durationSec float64) ([]byte, error)
	GenerateTransition(ctx context.Context, startFrame, endFrame []byte, prompt string, durationSec float64) ([]byte, error)
}

// Media is the ffmpeg boundary: frame extraction and stream-copy concat.
type Media interface {
	ExtractFrame(ctx context.Context, videoPath string, position services.FramePosition) ([]byte, error)
	Concatenate(ctx context.Context, clipPaths []string, outputPath string) error
	TempDir(prefix string) (string, error)
}

// Notifier is the fire-and-forget push channel to connected clients.
type Notifier interface {
	Publish(ctx context.Context, projectID uuid.UUID, event string, payload map[string]interface{})
}

// Config carries the recovery and retention knobs the worker reads.
type Config struct {
	StuckJobTimeout     time.Duration
	StuckExportTimeout  time.Duration
	StuckSweepInterval  time.Duration
	ExportRetentionDays int
	CleanupEnabled      bool
}

// Deps are the collaborators injected once at process start.
type Deps struct {
	Store    Store
	Blob     storage.Store
	Styler   StyleProvider
	Prompter services.PromptProvider
	Video    VideoProvider
	Media    Media
	Notifier Notifier
}

type Worker struct {
	store    Store
	blob     storage.Store
	styler   StyleProvider
	prompter services.PromptProvider
	video    VideoProvider
	media    Media
	notifier Notifier

	limiter *Limiter
	sup     *Supervisor
	cfg     Config
}

// New wires the worker. ctx is the process base context: launched tasks
// outlive the requests that started them but not the process shutdown.
func New(ctx context.Context, deps Deps, limits Limits, cfg Config) *Worker {
	return &Worker{
		store:    deps.Store,
		blob:     deps.Blob,
		styler:   deps.Styler,
		prompter: deps.Prompter,
		video:    deps.Video,
		media:    deps.Media,
		notifier: deps.Notifier,
		limiter:  NewLimiter(limits),
		sup:      NewSupervisor(ctx, deps.Store, deps.Notifier),
		cfg:      cfg,
	}
}

// Supervisor exposes task bookkeeping for debugging endpoints.
func (w *Worker) Supervisor() *Supervisor {
	return w.sup
}

// Wait blocks until all launched background tasks finish.
func (w *Worker) Wait() {
	w.sup.Wait()
}

func mimeTypeForPath(p string) string {
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return "image/jpeg"
}

func strPtr(s string) *string       { return &s }
func float64Ptr(f float64) *float64 { return &f }
