package content

import (
	"path/filepath"
	"strings"
)

// Kind is the coarse content category used to choose the extraction and
// validation strategy for a unit.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindCode     Kind = "code"
)

// Unit is the normalized representation of one piece of submission content
// handed to the AI layer. Units are owned by the job that created them.
type Unit struct {
	Kind Kind
	Data []byte
	Text string
	MIME string
}

// FileMeta describes a resolved submission file prior to normalization.
type FileMeta struct {
	Name string
	MIME string
	Data []byte
}

var codeExtensions = map[string]struct{}{
	".go": {}, ".py": {}, ".js": {}, ".ts": {}, ".java": {}, ".c": {},
	".h": {}, ".cpp": {}, ".cc": {}, ".cs": {}, ".rb": {}, ".rs": {},
	".php": {}, ".swift": {}, ".kt": {}, ".scala": {}, ".sql": {}, ".sh": {},
}

var documentMIMEs = map[string]struct{}{
	"application/pdf":    {},
	"text/csv":           {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"application/rtf": {},
}

// KindOf maps a MIME type plus filename to a content kind. Extension wins for
// code files because most code arrives as text/plain.
func KindOf(mimeType, name string) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := codeExtensions[ext]; ok {
		return KindCode
	}

	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}

	switch {
	case strings.HasPrefix(normalized, "image/"):
		return KindImage
	case strings.HasPrefix(normalized, "text/x-"):
		return KindCode
	}

	if _, ok := documentMIMEs[normalized]; ok {
		return KindDocument
	}

	if strings.HasPrefix(normalized, "text/") {
		return KindText
	}

	return KindDocument
}

func isCSV(mimeType, name string) bool {
	if strings.Contains(strings.ToLower(mimeType), "csv") {
		return true
	}

	return strings.EqualFold(filepath.Ext(name), ".csv")
}
