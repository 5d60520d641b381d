package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"zoom-ingest/config"
	"zoom-ingest/constant"
	"zoom-ingest/dto"
	"zoom-ingest/entities"
	"zoom-ingest/repository"
)

type fakeRepo struct {
	records   map[string]*entities.Recording
	claimErr  error
	finishErr error
	claims    int
	finished  []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[string]*entities.Recording{}}
}

func (f *fakeRepo) GetDB() *gorm.DB { return nil }

func (f *fakeRepo) Get(ctx context.Context, uid string) (*entities.Recording, error) {
	rec, ok := f.records[uid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRepo) Claim(ctx context.Context, recording *entities.Recording) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	f.claims++
	if existing, ok := f.records[recording.UID]; ok && existing.State == constant.RecordingStateFinished {
		return false, nil
	}
	recording.State = constant.RecordingStateInProgress
	f.records[recording.UID] = recording
	return true, nil
}

func (f *fakeRepo) MarkFinished(ctx context.Context, uid string) error {
	if f.finishErr != nil {
		return f.finishErr
	}
	rec, ok := f.records[uid]
	if !ok {
		return repository.ErrNotFound
	}
	rec.State = constant.RecordingStateFinished
	f.finished = append(f.finished, uid)
	return nil
}

type fakeStore struct {
	objects map[string][]byte
	saveErr error
	removed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	f.objects[name] = data
	return int64(len(data)), nil
}

func (f *fakeStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, ok := f.objects[name]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Remove(ctx context.Context, name string) error {
	f.removed = append(f.removed, name)
	delete(f.objects, name)
	return nil
}

type fakeDownloader struct {
	content  string
	err      error
	urls     []string
	tokens   []string
}

func (f *fakeDownloader) Fetch(ctx context.Context, downloadURL, token string) (io.ReadCloser, error) {
	f.urls = append(f.urls, downloadURL)
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader([]byte(f.content))), nil
}

type fakeOpencast struct {
	ensureErr    error
	ingestErr    error
	seriesTitles []string
	ingested     []*MediaPackage
	bodies       [][]byte
}

func (f *fakeOpencast) EnsureSeries(ctx context.Context, creator, title string) (string, error) {
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	f.seriesTitles = append(f.seriesTitles, title)
	return "series-1", nil
}

func (f *fakeOpencast) Ingest(ctx context.Context, pkg *MediaPackage) error {
	if f.ingestErr != nil {
		return f.ingestErr
	}
	body, err := io.ReadAll(pkg.Body)
	if err != nil {
		return err
	}
	f.ingested = append(f.ingested, pkg)
	f.bodies = append(f.bodies, body)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Opencast: config.Opencast{
			Flavor:       "presentation/source",
			SeriesPrefix: "Zoom Recordings ",
		},
		Worker: config.Worker{
			TransferTimeout: time.Minute,
		},
	}
}

func testRecord() *dto.JobRecord {
	return &dto.JobRecord{
		UUID:         "rec-uuid-1",
		ZoomSeriesID: 987654321,
		Topic:        "Weekly seminar",
		StartTime:    "2024-03-01T10:00:00Z",
		Duration:     42,
		HostID:       "host42",
		Token:        "dl-token",
		ReceivedTime: "2024-03-01T11:00:00Z",
		Creator:      "prof@example.edu",
		RecordingFiles: []dto.MediaFile{{
			RecordingID:    "file-1",
			RecordingStart: "2024-03-01T10:00:00Z",
			RecordingEnd:   "2024-03-01T10:42:00Z",
			DownloadURL:    "https://zoom.example.com/rec/file-1",
			FileType:       "MP4",
			FileSize:       3,
			RecordingType:  "shared_screen_with_speaker_view",
		}},
	}
}

func TestProcessHappyPath(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	dl := &fakeDownloader{content: "mp4"}
	oc := &fakeOpencast{}
	svc := NewIngestService(repo, store, dl, oc, testConfig())

	err := svc.Process(context.Background(), testRecord())
	require.NoError(t, err)

	require.Len(t, dl.urls, 1)
	assert.Equal(t, "https://zoom.example.com/rec/file-1", dl.urls[0])
	assert.Equal(t, "dl-token", dl.tokens[0])

	require.Len(t, oc.ingested, 1)
	pkg := oc.ingested[0]
	assert.Equal(t, "Weekly seminar", pkg.Title)
	assert.Equal(t, "prof@example.edu", pkg.Creator)
	assert.Equal(t, "series-1", pkg.SeriesID)
	assert.Equal(t, "presentation/source", pkg.Flavor)
	assert.Equal(t, "file-1.mp4", pkg.Filename)
	assert.Equal(t, []byte("mp4"), oc.bodies[0])

	// Series named after the creator's local part.
	assert.Equal(t, []string{"Zoom Recordings prof"}, oc.seriesTitles)

	assert.Equal(t, []string{"rec-uuid-1"}, repo.finished)
	assert.Equal(t, constant.RecordingStateFinished, repo.records["rec-uuid-1"].State)
	assert.Empty(t, store.objects, "scratch object should be removed after upload")
}

func TestProcessSnapshotOmitsToken(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	svc := NewIngestService(repo, store, &fakeDownloader{content: "mp4"}, &fakeOpencast{}, testConfig())

	require.NoError(t, svc.Process(context.Background(), testRecord()))

	snapshot := repo.records["rec-uuid-1"].Payload
	assert.NotContains(t, string(snapshot), "dl-token")
	assert.Contains(t, string(snapshot), "rec-uuid-1")
}

func TestProcessDuplicateDelivery(t *testing.T) {
	repo := newFakeRepo()
	repo.records["rec-uuid-1"] = &entities.Recording{UID: "rec-uuid-1", State: constant.RecordingStateFinished}
	dl := &fakeDownloader{content: "mp4"}
	oc := &fakeOpencast{}
	svc := NewIngestService(repo, newFakeStore(), dl, oc, testConfig())

	err := svc.Process(context.Background(), testRecord())
	require.NoError(t, err, "duplicate delivery must be acknowledged")
	assert.Empty(t, dl.urls, "no re-download on duplicate")
	assert.Empty(t, oc.ingested, "no re-upload on duplicate")
	assert.Empty(t, repo.finished)
}

func TestProcessResumesAfterCrash(t *testing.T) {
	// A leftover IN_PROGRESS row means a prior run died mid-transfer; the
	// full transfer must run again, not be skipped.
	repo := newFakeRepo()
	repo.records["rec-uuid-1"] = &entities.Recording{UID: "rec-uuid-1", State: constant.RecordingStateInProgress}
	dl := &fakeDownloader{content: "mp4"}
	oc := &fakeOpencast{}
	svc := NewIngestService(repo, newFakeStore(), dl, oc, testConfig())

	err := svc.Process(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Len(t, dl.urls, 1)
	assert.Len(t, oc.ingested, 1)
	assert.Equal(t, []string{"rec-uuid-1"}, repo.finished)
}

func TestProcessStatusStoreUnavailable(t *testing.T) {
	repo := newFakeRepo()
	repo.claimErr = errors.New("connection refused")
	dl := &fakeDownloader{content: "mp4"}
	svc := NewIngestService(repo, newFakeStore(), dl, &fakeOpencast{}, testConfig())

	err := svc.Process(context.Background(), testRecord())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNonRetryable)
	assert.Empty(t, dl.urls, "no transfer without the idempotency guard")
}

func TestProcessDownloadFailure(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	dl := &fakeDownloader{err: errors.New("connection reset")}
	oc := &fakeOpencast{}
	svc := NewIngestService(repo, store, dl, oc, testConfig())

	err := svc.Process(context.Background(), testRecord())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNonRetryable)
	assert.Empty(t, oc.ingested)
	assert.Empty(t, repo.finished)
	assert.Equal(t, constant.RecordingStateInProgress, repo.records["rec-uuid-1"].State,
		"IN_PROGRESS is preserved as evidence of non-completion")
	assert.Contains(t, store.removed, "file-1.mp4", "scratch cleaned up on terminal failure")
}

func TestProcessUploadFailure(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	oc := &fakeOpencast{ingestErr: errors.New("service unavailable")}
	svc := NewIngestService(repo, store, &fakeDownloader{content: "mp4"}, oc, testConfig())

	err := svc.Process(context.Background(), testRecord())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNonRetryable)
	assert.Empty(t, repo.finished)
	assert.Equal(t, constant.RecordingStateInProgress, repo.records["rec-uuid-1"].State)
	assert.Empty(t, store.objects, "scratch cleaned up on terminal failure")
}

func TestProcessCreatorWithoutMailbox(t *testing.T) {
	repo := newFakeRepo()
	oc := &fakeOpencast{}
	svc := NewIngestService(repo, newFakeStore(), &fakeDownloader{content: "mp4"}, oc, testConfig())

	record := testRecord()
	record.Creator = "host42"

	err := svc.Process(context.Background(), record)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonRetryable, "no ownership identity can ever be derived")
	assert.Empty(t, oc.ingested)
	assert.Empty(t, repo.finished)
}

func TestProcessNoFilesInRecord(t *testing.T) {
	repo := newFakeRepo()
	dl := &fakeDownloader{}
	svc := NewIngestService(repo, newFakeStore(), dl, &fakeOpencast{}, testConfig())

	record := testRecord()
	record.RecordingFiles = nil

	err := svc.Process(context.Background(), record)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonRetryable)
	assert.ErrorIs(t, err, ErrNoAcceptedFiles)
	assert.Empty(t, dl.urls)
}

func TestProcessMarkFinishedFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.finishErr = errors.New("connection refused")
	oc := &fakeOpencast{}
	svc := NewIngestService(repo, newFakeStore(), &fakeDownloader{content: "mp4"}, oc, testConfig())

	err := svc.Process(context.Background(), testRecord())
	require.Error(t, err, "outcome was not durably recorded, the delivery must not be acked")
	assert.Len(t, oc.ingested, 1)
}
