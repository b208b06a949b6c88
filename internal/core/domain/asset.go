package domain

import (
	"encoding/json"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

type AssetKind string

const (
	KindVideo    AssetKind = "video"
	KindDocument AssetKind = "document"
	KindUnknown  AssetKind = "unknown"
)

// Extractable reports whether the extraction worker knows how to handle the kind.
func (k AssetKind) Extractable() bool {
	return k == KindVideo || k == KindDocument
}

type MediaAsset struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"name"`
	StorageKey  string          `json:"storageKey"`
	URL         string          `json:"url,omitempty"`
	Kind        AssetKind       `json:"kind"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	UploadedAt  time.Time       `json:"uploadedAt"`
	IsDeleted   bool            `json:"-"`
	ViewCount   int64           `json:"viewCount"`
}

type CaptionSegment struct {
	MediaAssetID string  `json:"mediaAssetId"`
	Ordinal      int     `json:"ordinal"`
	StartSec     float64 `json:"startSec"`
	EndSec       float64 `json:"endSec"`
	Text         string  `json:"text"`
}

type ExtractedText struct {
	MediaAssetID string `json:"mediaAssetId"`
	Text         string `json:"text"`
}

// KindFilter narrows asset listings.
type KindFilter string

const (
	FilterAll      KindFilter = "all"
	FilterVideo    KindFilter = "video"
	FilterDocument KindFilter = "document"
)

// ParseKindFilter accepts the listing "only" parameter. "documento" is kept for
// clients built against the first version of the API.
func ParseKindFilter(raw string) (KindFilter, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return FilterAll, true
	case "video":
		return FilterVideo, true
	case "document", "documento":
		return FilterDocument, true
	default:
		return "", false
	}
}

var videoExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".mkv": true,
	".webm": true, ".avi": true, ".mpeg": true, ".mpg": true,
}

var documentExtensions = map[string]bool{
	".pdf": true, ".txt": true, ".md": true, ".csv": true, ".json": true,
	".xlsx": true, ".docx": true, ".html": true, ".htm": true,
}

// DeriveKind classifies an upload by extension first and content type second.
func DeriveKind(filename, contentType string) AssetKind {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case videoExtensions[ext]:
		return KindVideo
	case documentExtensions[ext]:
		return KindDocument
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return KindUnknown
	}
	switch {
	case strings.HasPrefix(mediaType, "video/"):
		return KindVideo
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/pdf",
		mediaType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mediaType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return KindDocument
	default:
		return KindUnknown
	}
}
