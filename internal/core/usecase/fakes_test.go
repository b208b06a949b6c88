package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/media-search/internal/core/domain"
)

// memoryStore is an in-memory stand-in for the relational store. Reads filter
// soft-deleted assets the same way the SQL does.
type memoryStore struct {
	mu       sync.Mutex
	assets   map[string]*domain.MediaAsset
	captions map[string][]domain.CaptionSegment
	texts    map[string]string
	jobs     map[string]*domain.ExtractionJob
	jobOrder []string

	searchCalls int
	captionErr  error
	documentErr error
	createErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		assets:   map[string]*domain.MediaAsset{},
		captions: map[string][]domain.CaptionSegment{},
		texts:    map[string]string{},
		jobs:     map[string]*domain.ExtractionJob{},
	}
}

func (s *memoryStore) addAsset(a domain.MediaAsset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyAsset := a
	s.assets[a.ID] = &copyAsset
}

func (s *memoryStore) Create(_ context.Context, asset *domain.MediaAsset) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.addAsset(*asset)
	return nil
}

func (s *memoryStore) live(id string) (*domain.MediaAsset, error) {
	a, ok := s.assets[id]
	if !ok || a.IsDeleted {
		return nil, domain.WrapError(domain.ErrAssetNotFound, "get asset", fmt.Errorf("id=%s", id))
	}
	return a, nil
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*domain.MediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.live(id)
	if err != nil {
		return nil, err
	}
	out := *a
	return &out, nil
}

func (s *memoryStore) View(_ context.Context, id string) (*domain.MediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.live(id)
	if err != nil {
		return nil, err
	}
	a.ViewCount++
	out := *a
	return &out, nil
}

func (s *memoryStore) List(_ context.Context, filter domain.KindFilter) ([]domain.MediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MediaAsset, 0)
	for _, a := range s.assets {
		if a.IsDeleted {
			continue
		}
		if filter != domain.FilterAll && string(a.Kind) != string(filter) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (s *memoryStore) SoftDeleteMany(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if a, ok := s.assets[id]; ok && !a.IsDeleted {
			a.IsDeleted = true
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) ListCaptions(_ context.Context, assetID string) ([]domain.CaptionSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.live(assetID); err != nil {
		return []domain.CaptionSegment{}, nil
	}
	return append([]domain.CaptionSegment(nil), s.captions[assetID]...), nil
}

func (s *memoryStore) ReplaceCaptions(_ context.Context, assetID string, segments []domain.CaptionSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captions[assetID] = append([]domain.CaptionSegment(nil), segments...)
	return nil
}

func (s *memoryStore) GetText(_ context.Context, assetID string) (*domain.ExtractedText, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.live(assetID); err != nil {
		return nil, nil
	}
	text, ok := s.texts[assetID]
	if !ok {
		return nil, nil
	}
	return &domain.ExtractedText{MediaAssetID: assetID, Text: text}, nil
}

func (s *memoryStore) UpsertText(_ context.Context, text domain.ExtractedText) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[text.MediaAssetID] = text.Text
	return nil
}

func (s *memoryStore) SearchCaptions(_ context.Context, query string, limit int) ([]domain.SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	if s.captionErr != nil {
		return nil, s.captionErr
	}
	q := strings.ToLower(query)
	out := make([]domain.SearchHit, 0)
	for id, segs := range s.captions {
		a, ok := s.assets[id]
		if !ok || a.IsDeleted || a.Kind != domain.KindVideo {
			continue
		}
		for _, seg := range segs {
			if strings.Contains(strings.ToLower(seg.Text), q) {
				start := seg.StartSec
				out = append(out, domain.SearchHit{
					MediaAssetID:    a.ID,
					Name:            a.DisplayName,
					Kind:            a.Kind,
					StorageKey:      a.StorageKey,
					UploadedAt:      a.UploadedAt,
					SourceTimestamp: &start,
					Excerpt:         seg.Text,
				})
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) SearchDocuments(_ context.Context, query string, limit int) ([]domain.SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	if s.documentErr != nil {
		return nil, s.documentErr
	}
	q := strings.ToLower(query)
	out := make([]domain.SearchHit, 0)
	for _, a := range s.assets {
		if a.IsDeleted || a.Kind != domain.KindDocument {
			continue
		}
		text := s.texts[a.ID]
		if strings.Contains(strings.ToLower(text), q) || strings.Contains(strings.ToLower(a.DisplayName), q) {
			out = append(out, domain.SearchHit{
				MediaAssetID: a.ID,
				Name:         a.DisplayName,
				Kind:         a.Kind,
				StorageKey:   a.StorageKey,
				UploadedAt:   a.UploadedAt,
				Excerpt:      text,
			})
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) CreateJob(_ context.Context, job *domain.ExtractionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyJob := *job
	s.jobs[job.ID] = &copyJob
	s.jobOrder = append(s.jobOrder, job.ID)
	return nil
}

func (s *memoryStore) GetJob(_ context.Context, id string) (*domain.ExtractionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	out := *j
	return &out, nil
}

func (s *memoryStore) LatestJob(_ context.Context, assetID string) (*domain.ExtractionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.jobOrder) - 1; i >= 0; i-- {
		j := s.jobs[s.jobOrder[i]]
		if j.AssetID == assetID {
			out := *j
			return &out, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) MarkJobRunning(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	now := time.Now().UTC()
	j.Status = domain.JobRunning
	j.StartedAt = &now
	return nil
}

func (s *memoryStore) FinishJob(_ context.Context, id string, status domain.JobStatus, exitCode *int, errMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if !utf8.ValidString(errMessage) {
		return errors.New("invalid byte sequence for encoding \"UTF8\"")
	}
	now := time.Now().UTC()
	j.Status = status
	j.ExitCode = exitCode
	j.Error = errMessage
	j.FinishedAt = &now
	return nil
}

func (s *memoryStore) job(id string) domain.ExtractionJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

type storageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

func (f *storageFake) PublicURL(key string) string {
	return "http://media.test/files/" + key
}

type dispatcherFake struct {
	jobs []domain.ExtractionJob
	err  error
}

func (f *dispatcherFake) Dispatch(_ context.Context, job domain.ExtractionJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

// runnerFake simulates the worker process: on success it writes rows into the store.
type runnerFake struct {
	store  *memoryStore
	result domain.WorkerResult
	err    error
	calls  int
	write  func(store *memoryStore, assetID string)
}

func (f *runnerFake) Run(_ context.Context, assetID, _ string) (domain.WorkerResult, error) {
	f.calls++
	if f.err != nil {
		return domain.WorkerResult{}, f.err
	}
	if f.result.ExitCode == 0 && f.write != nil {
		f.write(f.store, assetID)
	}
	return f.result, nil
}

type triggerFake struct {
	assets []string
	err    error
}

func (f *triggerFake) Trigger(_ context.Context, asset *domain.MediaAsset) (*domain.ExtractionJob, error) {
	f.assets = append(f.assets, asset.ID)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ExtractionJob{ID: "job-1", AssetID: asset.ID, Status: domain.JobQueued}, nil
}

var errBoom = errors.New("boom")
