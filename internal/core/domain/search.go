package domain

import (
	"time"
	"unicode"
)

const (
	SnippetLength = 160
	SnippetLead   = 40
	SearchLimit   = 100
)

type SearchHit struct {
	MediaAssetID    string    `json:"id"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	Kind            AssetKind `json:"kind"`
	MatchedFrom     AssetKind `json:"matchedFrom"`
	Snippet         string    `json:"snippet"`
	SourceTimestamp *float64  `json:"timestamp,omitempty"`
	UploadedAt      time.Time `json:"uploadedAt"`

	// StorageKey and Excerpt are filled by the store; URL and Snippet are derived from them.
	StorageKey string `json:"-"`
	Excerpt    string `json:"-"`
}

// Snippet cuts a SnippetLength-rune window that starts SnippetLead runes before
// the first case-insensitive occurrence of query in text. ok is false when
// query does not occur.
func Snippet(text, query string) (string, bool) {
	hay := []rune(text)
	needle := foldRunes([]rune(query))
	if len(needle) == 0 {
		return "", false
	}

	idx := indexFolded(hay, needle)
	if idx < 0 {
		return "", false
	}

	start := idx - SnippetLead
	if start < 0 {
		start = 0
	}
	end := start + SnippetLength
	if end > len(hay) {
		end = len(hay)
	}
	return string(hay[start:end]), true
}

// foldRunes lowercases rune by rune so that indexes stay aligned with the input.
func foldRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func indexFolded(hay, needle []rune) int {
	if len(needle) > len(hay) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, r := range needle {
			if unicode.ToLower(hay[i+j]) != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
