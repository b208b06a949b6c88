package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/core/ports"
)

const (
	// multipartOverhead is the room left for form fields on top of the file limit.
	multipartOverhead = 1 << 20
	multipartMemory   = 32 << 20
)

type uploadResponse struct {
	ID          string           `json:"id"`
	URL         string           `json:"url"`
	Kind        domain.AssetKind `json:"kind"`
	Category    string           `json:"category"`
	Subcategory string           `json:"subcategory,omitempty"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000,dive,required"`
}

type extractSuccess struct {
	Success bool                 `json:"success"`
	Rows    any                  `json:"rows"`
	Job     domain.ExtractionJob `json:"job"`
}

type extractFailure struct {
	Success  bool   `json:"success"`
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Error    string `json:"error"`
}

func (rt *Router) uploadAsset(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, domain.WrapError(domain.ErrPayloadTooLarge, "upload", err))
			return
		}
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	var metadata json.RawMessage
	if raw := strings.TrimSpace(r.FormValue("metadata")); raw != "" {
		metadata = json.RawMessage(raw)
	}

	asset, err := rt.svc.Ingest.Upload(r.Context(), ports.UploadRequest{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Category:    r.FormValue("category"),
		Subcategory: r.FormValue("subcategory"),
		Metadata:    metadata,
		Body:        file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, string(asset.Kind))
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		ID:          asset.ID,
		URL:         asset.URL,
		Kind:        asset.Kind,
		Category:    asset.Category,
		Subcategory: asset.Subcategory,
	})
}

func (rt *Router) listAssets(w http.ResponseWriter, r *http.Request) {
	filter, ok := domain.ParseKindFilter(r.URL.Query().Get("only"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only must be one of all, video, document"})
		return
	}
	assets, err := rt.svc.Catalog.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if assets == nil {
		assets = []domain.MediaAsset{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": assets})
}

func (rt *Router) getAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := rt.svc.Catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (rt *Router) listCaptions(w http.ResponseWriter, r *http.Request) {
	captions, err := rt.svc.Catalog.Captions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if captions == nil {
		captions = []domain.CaptionSegment{}
	}
	writeJSON(w, http.StatusOK, captions)
}

func (rt *Router) assetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := rt.svc.Catalog.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) extractAsset(w http.ResponseWriter, r *http.Request) {
	outcome, err := rt.svc.Extract.RunSync(r.Context(), r.PathValue("id"))
	if rt.metrics != nil {
		rt.metrics.RecordSyncExtraction(serviceName, err)
	}

	var failure *domain.WorkerFailure
	switch {
	case errors.As(err, &failure):
		writeJSON(w, http.StatusInternalServerError, extractFailure{
			Success:  false,
			ExitCode: failure.ExitCode,
			Stdout:   failure.Stdout,
			Stderr:   failure.Stderr,
			Error:    failure.Error(),
		})
		return
	case err != nil:
		writeError(w, r, err)
		return
	}

	var rows any = outcome.Captions
	if outcome.Text != nil {
		rows = []domain.ExtractedText{*outcome.Text}
	} else if outcome.Captions == nil {
		rows = []domain.CaptionSegment{}
	}
	writeJSON(w, http.StatusOK, extractSuccess{Success: true, Rows: rows, Job: outcome.Job})
}

func (rt *Router) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := rt.decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	count, err := rt.svc.Lifecycle.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordDeleted(serviceName, count)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (rt *Router) downloadFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if rt.svc.Files == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
		return
	}
	rc, err := rt.svc.Files.Open(r.Context(), key)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrInvalid):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
		return
	case err != nil:
		writeError(w, r, domain.WrapError(domain.ErrStorage, "open file", err))
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if seeker, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, key, time.Time{}, seeker)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
