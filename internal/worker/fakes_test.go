package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"memoryreel-backend/internal/models"
	"memoryreel-backend/internal/services"
)

// fakeStore is an in-memory Store with just enough behavior to drive the
// orchestration paths under test.
type fakeStore struct {
	mu sync.Mutex

	projects map[uuid.UUID]*models.Project
	photos   map[uuid.UUID]*models.Photo
	videos   map[uuid.UUID]*models.Video
	exports  map[uuid.UUID]*models.Export
	jobs     map[uuid.UUID]*models.Job

	variants []models.StyledVariant
	progress []exportProgress

	failSaveStyled map[uuid.UUID]bool
}

type exportProgress struct {
	Step    string
	Percent int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects:       make(map[uuid.UUID]*models.Project),
		photos:         make(map[uuid.UUID]*models.Photo),
		videos:         make(map[uuid.UUID]*models.Video),
		exports:        make(map[uuid.UUID]*models.Export),
		jobs:           make(map[uuid.UUID]*models.Job),
		failSaveStyled: make(map[uuid.UUID]bool),
	}
}

func (s *fakeStore) addProject(p models.Project) *models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.projects[p.ID] = &cp
	return &cp
}

func (s *fakeStore) addPhoto(p models.Photo) *models.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.photos[p.ID] = &cp
	return &cp
}

func (s *fakeStore) addVideo(v models.Video) *models.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := v
	s.videos[v.ID] = &cp
	return &cp
}

func (s *fakeStore) addExport(e models.Export) *models.Export {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := e
	s.exports[e.ID] = &cp
	return &cp
}

func (s *fakeStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project not found")
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.projects[id]; ok {
		p.Status = status
	}
	return nil
}

func (s *fakeStore) CountPhotosInStatus(ctx context.Context, projectID uuid.UUID, status models.PhotoStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.photos {
		if p.ProjectID == projectID && p.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ResetStalledProjects(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, proj := range s.projects {
		if proj.Status != models.ProjectStatusProcessing {
			continue
		}
		styling := false
		for _, p := range s.photos {
			if p.ProjectID == proj.ID && p.Status == models.PhotoStatusStyling {
				styling = true
				break
			}
		}
		if !styling {
			proj.Status = models.ProjectStatusDraft
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok {
		return nil, fmt.Errorf("photo not found")
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) GetProjectPhotos(ctx context.Context, projectID uuid.UUID) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Photo
	for _, p := range s.photos {
		if p.ProjectID == projectID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *fakeStore) GetStylingPhotos(ctx context.Context) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Photo
	for _, p := range s.photos {
		if p.Status == models.PhotoStatusStyling {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdatePhotoStatus(ctx context.Context, id uuid.UUID, status models.PhotoStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.photos[id]; ok {
		p.Status = status
	}
	return nil
}

func (s *fakeStore) UpdatePhotoPromptStatus(ctx context.Context, id uuid.UUID, status models.PromptStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.photos[id]; ok {
		p.PromptStatus = status
	}
	return nil
}

func (s *fakeStore) SetPhotoPrompt(ctx context.Context, id uuid.UUID, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok {
		return fmt.Errorf("photo not found")
	}
	p.AnimationPrompt = &prompt
	p.PromptStatus = models.PromptStatusCompleted
	return nil
}

func (s *fakeStore) MarkProjectPhotosStyling(ctx context.Context, projectID uuid.UUID) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Photo
	for _, p := range s.photos {
		if p.ProjectID == projectID {
			p.Status = models.PhotoStatusStyling
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *fakeStore) SaveStyledResult(ctx context.Context, photoID uuid.UUID, styledPath, style string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaveStyled[photoID] {
		return fmt.Errorf("forced styled-result failure")
	}
	p, ok := s.photos[photoID]
	if !ok {
		return fmt.Errorf("photo not found")
	}
	for i := range s.variants {
		if s.variants[i].PhotoID == photoID {
			s.variants[i].IsSelected = false
		}
	}
	s.variants = append(s.variants, models.StyledVariant{
		ID:         uuid.New(),
		PhotoID:    photoID,
		StyledPath: styledPath,
		Style:      style,
		IsSelected: true,
	})
	p.StyledPath = &styledPath
	p.Status = models.PhotoStatusStyled
	return nil
}

func (s *fakeStore) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, fmt.Errorf("video not found")
	}
	cp := *v
	return &cp, nil
}

func (s *fakeStore) CreateVideo(ctx context.Context, video *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *video
	s.videos[video.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateVideoStatus(ctx context.Context, id uuid.UUID, status models.VideoStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.Status = status
	}
	return nil
}

func (s *fakeStore) SetVideoReady(ctx context.Context, id uuid.UUID, videoPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return fmt.Errorf("video not found")
	}
	if v.PhotoID != nil {
		for _, other := range s.videos {
			if other.PhotoID != nil && *other.PhotoID == *v.PhotoID && other.VideoType == models.VideoTypeScene {
				other.IsSelected = false
			}
		}
	}
	v.Status = models.VideoStatusReady
	v.VideoPath = &videoPath
	v.IsSelected = true
	return nil
}

func (s *fakeStore) FailVideo(ctx context.Context, id uuid.UUID) error {
	return s.UpdateVideoStatus(ctx, id, models.VideoStatusFailed)
}

func (s *fakeStore) GetReadySceneVideos(ctx context.Context, projectID uuid.UUID) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// mirrors the photos join: ordering follows the owning photo's position,
	// never the video's own (possibly stale) position column
	var out []models.Video
	photoPos := map[uuid.UUID]int{}
	for _, v := range s.videos {
		if v.ProjectID != projectID || v.VideoType != models.VideoTypeScene ||
			v.Status != models.VideoStatusReady || v.VideoPath == nil || !v.IsSelected {
			continue
		}
		if v.PhotoID == nil {
			continue
		}
		photo, ok := s.photos[*v.PhotoID]
		if !ok {
			continue
		}
		photoPos[v.ID] = photo.Position
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		return photoPos[out[i].ID] < photoPos[out[j].ID]
	})
	return out, nil
}

func (s *fakeStore) GetExport(ctx context.Context, id uuid.UUID) (*models.Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exports[id]
	if !ok {
		return nil, fmt.Errorf("export not found")
	}
	cp := *e
	return &cp, nil
}

func (s *fakeStore) StartExport(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exports[id]
	if !ok {
		return fmt.Errorf("export not found")
	}
	if e.Status != models.ExportStatusPending {
		return fmt.Errorf("export is not pending")
	}
	e.Status = models.ExportStatusProcessing
	return nil
}

func (s *fakeStore) UpdateExportProgress(ctx context.Context, id uuid.UUID, step, detail string, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exports[id]
	if !ok {
		return fmt.Errorf("export not found")
	}
	e.ProgressStep = &step
	e.ProgressDetail = &detail
	e.ProgressPercent = percent
	s.progress = append(s.progress, exportProgress{Step: step, Percent: percent})
	return nil
}

func (s *fakeStore) FinishExport(ctx context.Context, id uuid.UUID, filePath string, thumbnailPath *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exports[id]
	if !ok {
		return fmt.Errorf("export not found")
	}
	e.Status = models.ExportStatusReady
	e.FilePath = &filePath
	e.ThumbnailPath = thumbnailPath
	e.ProgressPercent = 100
	e.ProgressStep = nil
	e.ProgressDetail = nil
	e.ErrorMessage = nil
	return nil
}

func (s *fakeStore) FailExport(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exports[id]
	if !ok {
		return fmt.Errorf("export not found")
	}
	e.Status = models.ExportStatusFailed
	e.ErrorMessage = &errorMessage
	return nil
}

func (s *fakeStore) ListExpiredExports(ctx context.Context, cutoff time.Time) ([]models.Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Export
	for _, e := range s.exports {
		if e.Status == models.ExportStatusReady && e.CreatedAt.Before(cutoff) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteExport(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.exports, id)
	return nil
}

func (s *fakeStore) CreateJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	cp.CreatedAt = time.Now()
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeStore) CompleteJob(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = models.JobStatusCompleted
	}
	return nil
}

func (s *fakeStore) FailJob(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = models.JobStatusFailed
		j.ErrorMessage = &errorMessage
	}
	return nil
}

func (s *fakeStore) ResetRunningJobs(ctx context.Context, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.Status == models.JobStatusRunning {
			j.Status = models.JobStatusFailed
			j.ErrorMessage = &reason
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) FailStuckJobs(ctx context.Context, defaultCutoff, exportCutoff time.Time, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.Status != models.JobStatusRunning {
			continue
		}
		cutoff := defaultCutoff
		if j.JobType == models.JobTypeExport {
			cutoff = exportCutoff
		}
		if j.CreatedAt.Before(cutoff) {
			j.Status = models.JobStatusFailed
			j.ErrorMessage = &reason
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) jobByType(jobType models.JobType) *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.JobType == jobType {
			cp := *j
			return &cp
		}
	}
	return nil
}

func (s *fakeStore) progressPercents() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.progress))
	for i, p := range s.progress {
		out[i] = p.Percent
	}
	return out
}

// fakeBlob stores blobs in memory. LocalPath materializes to a real temp
// file because the export pipeline hands paths to the media layer.
type fakeBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: make(map[string][]byte)}
}

func (b *fakeBlob) put(path string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = data
}

func (b *fakeBlob) Save(ctx context.Context, data []byte, category string, ownerID uuid.UUID, filename string) (string, error) {
	path := fmt.Sprintf("%s/%s/%s", category, ownerID, filename)
	b.put(path, data)
	return path, nil
}

func (b *fakeBlob) Read(ctx context.Context, path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[path]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", path)
	}
	return data, nil
}

func (b *fakeBlob) Delete(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, path)
	return nil
}

func (b *fakeBlob) URL(path string) string {
	return "/files/" + path
}

func (b *fakeBlob) LocalPath(ctx context.Context, path string) (string, func(), error) {
	data, err := b.Read(ctx, path)
	if err != nil {
		return "", nil, err
	}
	f, err := os.CreateTemp("", "fakeblob-*")
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", nil, err
	}
	f.Close()
	name := f.Name()
	return name, func() { os.Remove(name) }, nil
}

func (b *fakeBlob) has(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[path]
	return ok
}

// fakeStyler fails for photo originals listed in failPaths.
type fakeStyler struct {
	mu        sync.Mutex
	calls     int
	failPaths map[string]bool
}

func newFakeStyler() *fakeStyler {
	return &fakeStyler{failPaths: make(map[string]bool)}
}

func (f *fakeStyler) ApplyStyle(ctx context.Context, imageData []byte, mimeType, stylePrompt string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failPaths[string(imageData)]
	f.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("provider rejected image")
	}
	return []byte("styled:" + string(imageData)), nil
}

type fakePrompter struct {
	mu        sync.Mutex
	failInput string
}

func (f *fakePrompter) GeneratePrompt(ctx context.Context, imageData []byte, mimeType string, style *string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInput != "" && string(imageData) == f.failInput {
		return "", fmt.Errorf("vision model unavailable")
	}
	return "gentle pan across " + string(imageData), nil
}

type fakeVideoGen struct {
	mu              sync.Mutex
	sceneCalls      int
	transitionCalls int
	failScenes      error
	failTransitions error
	lastPrompt      string
}

func (f *fakeVideoGen) GenerateVideo(ctx context.Context, imageData []byte, mimeType, prompt string, durationSec float64) ([]byte, error) {
	f.mu.Lock()
	f.sceneCalls++
	f.lastPrompt = prompt
	f.mu.Unlock()
	if f.failScenes != nil {
		return nil, f.failScenes
	}
	return []byte("clip:" + string(imageData)), nil
}

func (f *fakeVideoGen) GenerateTransition(ctx context.Context, startFrame, endFrame []byte, prompt string, durationSec float64) ([]byte, error) {
	f.mu.Lock()
	f.transitionCalls++
	f.mu.Unlock()
	if f.failTransitions != nil {
		return nil, f.failTransitions
	}
	return []byte(fmt.Sprintf("transition:%s->%s", startFrame, endFrame)), nil
}

// fakeMedia concatenates by joining the input file contents, which lets
// tests assert clip ordering from the final output.
type fakeMedia struct {
	mu          sync.Mutex
	concatCalls [][]string
	frameData   []byte
}

func (m *fakeMedia) ExtractFrame(ctx context.Context, videoPath string, position services.FramePosition) ([]byte, error) {
	if m.frameData != nil {
		return m.frameData, nil
	}
	data, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("%s-frame(%s)", position, data)), nil
}

func (m *fakeMedia) Concatenate(ctx context.Context, clipPaths []string, outputPath string) error {
	m.mu.Lock()
	m.concatCalls = append(m.concatCalls, append([]string(nil), clipPaths...))
	m.mu.Unlock()

	var parts []string
	for _, p := range clipPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		parts = append(parts, string(data))
	}
	return os.WriteFile(outputPath, []byte(strings.Join(parts, "|")), 0o644)
}

func (m *fakeMedia) TempDir(prefix string) (string, error) {
	return os.MkdirTemp("", prefix)
}

type publishedEvent struct {
	ProjectID uuid.UUID
	Event     string
	Payload   map[string]interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *fakeNotifier) Publish(ctx context.Context, projectID uuid.UUID, event string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{ProjectID: projectID, Event: event, Payload: payload})
}

func (n *fakeNotifier) eventNames() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Event
	}
	return out
}

// testWorker bundles a Worker with its fakes for assertions.
type testWorker struct {
	w        *Worker
	store    *fakeStore
	blob     *fakeBlob
	styler   *fakeStyler
	prompter *fakePrompter
	video    *fakeVideoGen
	media    *fakeMedia
	notifier *fakeNotifier
}

func newTestWorker(ctx context.Context) *testWorker {
	tw := &testWorker{
		store:    newFakeStore(),
		blob:     newFakeBlob(),
		styler:   newFakeStyler(),
		prompter: &fakePrompter{},
		video:    &fakeVideoGen{},
		media:    &fakeMedia{},
		notifier: &fakeNotifier{},
	}
	tw.w = New(ctx, Deps{
		Store:    tw.store,
		Blob:     tw.blob,
		Styler:   tw.styler,
		Prompter: tw.prompter,
		Video:    tw.video,
		Media:    tw.media,
		Notifier: tw.notifier,
	}, Limits{
		StyleTransfers:    3,
		VideoGenerations:  5,
		Exports:           2,
		PromptGenerations: 4,
	}, Config{
		StuckJobTimeout:     30 * time.Minute,
		StuckExportTimeout:  120 * time.Minute,
		StuckSweepInterval:  time.Minute,
		ExportRetentionDays: 7,
		CleanupEnabled:      true,
	})
	return tw
}

// seedPhoto creates a project photo backed by a blob whose content is the
// photo's marker string, so fakes can key failures off it.
func (tw *testWorker) seedPhoto(projectID uuid.UUID, position int, marker string) *models.Photo {
	path := filepath.Join("originals", projectID.String(), marker+".jpg")
	tw.blob.put(path, []byte(marker))
	return tw.store.addPhoto(models.Photo{
		ID:           uuid.New(),
		ProjectID:    projectID,
		OriginalPath: path,
		PromptStatus: models.PromptStatusPending,
		Position:     position,
		Status:       models.PhotoStatusUploaded,
	})
}
