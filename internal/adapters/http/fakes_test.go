package httpadapter

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/media-search/internal/config"
	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/core/ports"
	"github.com/kirillkom/media-search/internal/core/usecase"
)

// library is an in-memory catalog shared by the catalog, search and
// lifecycle fakes so that router tests can observe cross-endpoint effects.
type library struct {
	mu       sync.Mutex
	assets   map[string]*domain.MediaAsset
	captions map[string][]domain.CaptionSegment
	texts    map[string]string
}

func newLibrary() *library {
	return &library{
		assets:   map[string]*domain.MediaAsset{},
		captions: map[string][]domain.CaptionSegment{},
		texts:    map[string]string{},
	}
}

func (l *library) add(a domain.MediaAsset) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now().UTC()
	}
	l.assets[a.ID] = &a
}

func (l *library) live(id string) (*domain.MediaAsset, bool) {
	a, ok := l.assets[id]
	if !ok || a.IsDeleted {
		return nil, false
	}
	return a, true
}

func notFound(id string) error {
	return domain.WrapError(domain.ErrAssetNotFound, "get asset", fsErr(id))
}

func fsErr(id string) error { return &fs.PathError{Op: "lookup", Path: id, Err: fs.ErrNotExist} }

// Create, GetByID, View, List and SoftDeleteMany make library a
// ports.AssetRepository for the real ingestion usecase.
func (l *library) Create(_ context.Context, a *domain.MediaAsset) error {
	l.add(*a)
	return nil
}

func (l *library) GetByID(_ context.Context, id string) (*domain.MediaAsset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.live(id)
	if !ok {
		return nil, notFound(id)
	}
	cp := *a
	return &cp, nil
}

func (l *library) View(ctx context.Context, id string) (*domain.MediaAsset, error) {
	l.mu.Lock()
	if a, ok := l.live(id); ok {
		a.ViewCount++
	}
	l.mu.Unlock()
	return l.GetByID(ctx, id)
}

func (l *library) List(_ context.Context, filter domain.KindFilter) ([]domain.MediaAsset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []domain.MediaAsset{}
	for _, a := range l.assets {
		if a.IsDeleted {
			continue
		}
		if filter != domain.FilterAll && string(a.Kind) != string(filter) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *library) SoftDeleteMany(_ context.Context, ids []string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, id := range ids {
		if a, ok := l.live(id); ok {
			a.IsDeleted = true
			n++
		}
	}
	return n, nil
}

func (l *library) Captions(_ context.Context, id string) ([]domain.CaptionSegment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.live(id); !ok {
		return nil, notFound(id)
	}
	return append([]domain.CaptionSegment{}, l.captions[id]...), nil
}

func (l *library) Status(_ context.Context, id string) (*domain.AssetStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.live(id)
	if !ok {
		return nil, notFound(id)
	}
	return &domain.AssetStatus{AssetID: id, Kind: a.Kind, Ready: len(l.captions[id]) > 0}, nil
}

// Search is a naive substring scan over live captions and texts.
func (l *library) Search(_ context.Context, query string) ([]domain.SearchHit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	query = strings.ToLower(strings.TrimSpace(query))
	hits := []domain.SearchHit{}
	if query == "" {
		return hits, nil
	}
	for id, segs := range l.captions {
		a, ok := l.live(id)
		if !ok {
			continue
		}
		for _, s := range segs {
			if strings.Contains(strings.ToLower(s.Text), query) {
				ts := s.StartSec
				hits = append(hits, domain.SearchHit{MediaAssetID: id, Name: a.DisplayName, Kind: a.Kind, MatchedFrom: domain.KindVideo, Snippet: s.Text, SourceTimestamp: &ts})
			}
		}
	}
	for id, text := range l.texts {
		a, ok := l.live(id)
		if ok && strings.Contains(strings.ToLower(text), query) {
			hits = append(hits, domain.SearchHit{MediaAssetID: id, Name: a.DisplayName, Kind: a.Kind, MatchedFrom: domain.KindDocument, Snippet: text})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].MediaAssetID < hits[j].MediaAssetID })
	return hits, nil
}

type lifecycleFake struct{ lib *library }

func (f lifecycleFake) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	return f.lib.SoftDeleteMany(ctx, ids)
}

type catalogFake struct{ lib *library }

func (f catalogFake) List(ctx context.Context, filter domain.KindFilter) ([]domain.MediaAsset, error) {
	return f.lib.List(ctx, filter)
}
func (f catalogFake) Get(ctx context.Context, id string) (*domain.MediaAsset, error) {
	return f.lib.View(ctx, id)
}
func (f catalogFake) Captions(ctx context.Context, id string) ([]domain.CaptionSegment, error) {
	return f.lib.Captions(ctx, id)
}
func (f catalogFake) Status(ctx context.Context, id string) (*domain.AssetStatus, error) {
	return f.lib.Status(ctx, id)
}

type blobStore struct {
	mu    sync.Mutex
	blobs map[string]string
}

func (s *blobStore) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blobs == nil {
		s.blobs = map[string]string{}
	}
	s.blobs[key] = string(raw)
	return nil
}

func (s *blobStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.blobs[key]
	if !ok {
		return nil, fsErr(key)
	}
	return io.NopCloser(strings.NewReader(raw)), nil
}

func (s *blobStore) PublicURL(key string) string {
	return "http://media.test/files/" + key
}

type triggerRecorder struct {
	mu     sync.Mutex
	assets []string
}

func (t *triggerRecorder) Trigger(_ context.Context, a *domain.MediaAsset) (*domain.ExtractionJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assets = append(t.assets, a.ID)
	return &domain.ExtractionJob{ID: "job-" + a.ID, AssetID: a.ID, Status: domain.JobQueued}, nil
}

type extractFake struct {
	outcome *domain.ExtractionOutcome
	err     error
}

func (f extractFake) Trigger(context.Context, *domain.MediaAsset) (*domain.ExtractionJob, error) {
	return nil, nil
}
func (f extractFake) RunSync(context.Context, string) (*domain.ExtractionOutcome, error) {
	return f.outcome, f.err
}
func (f extractFake) RunJob(context.Context, string) error { return nil }

type testEnv struct {
	lib     *library
	blobs   *blobStore
	trigger *triggerRecorder
	handler http.Handler
}

func testTaxonomy() domain.Taxonomy {
	return domain.NewTaxonomy([]domain.TaxonomyEntry{
		{Name: "retail", Subcategories: []string{"Liquidación", "Temporada"}},
		{Name: "training"},
	})
}

func newTestEnv(cfg config.Config, extract ports.ExtractionService) *testEnv {
	lib := newLibrary()
	blobs := &blobStore{}
	trigger := &triggerRecorder{}
	if extract == nil {
		extract = extractFake{}
	}
	ingest := usecase.NewIngestAssetUseCase(lib, blobs, trigger, testTaxonomy(), cfg.MaxUploadBytes, nil)
	handler := NewRouter(cfg, Services{
		Ingest:    ingest,
		Catalog:   catalogFake{lib: lib},
		Extract:   extract,
		Search:    lib,
		Lifecycle: lifecycleFake{lib: lib},
		Files:     blobs,
	}, nil).Handler()
	return &testEnv{lib: lib, blobs: blobs, trigger: trigger, handler: handler}
}
