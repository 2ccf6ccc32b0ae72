package content

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/feedforward/feedforward-api/internal/observability"
)

// Processor normalizes raw submission content into units. Process never fails
// the job: extraction problems degrade to a diagnostic text unit so the
// pipeline always has something to submit to the AI layer.
type Processor struct {
	logger        zerolog.Logger
	sanitizer     *bluemonday.Policy
	maxImageBytes int64
}

// NewProcessor constructs a content processor. maxImageMB bounds the soft
// ceiling above which images are flagged for possible provider-side rejection.
func NewProcessor(maxImageMB int, logger zerolog.Logger) *Processor {
	if maxImageMB <= 0 {
		maxImageMB = 4
	}

	return &Processor{
		logger:        logger.With().Str("component", "content_processor").Logger(),
		sanitizer:     bluemonday.StrictPolicy(),
		maxImageBytes: int64(maxImageMB) * 1024 * 1024,
	}
}

// ProcessInline wraps inline submission text in a single unit. A name hint such
// as "main.go" switches the kind to code.
func (p *Processor) ProcessInline(text, nameHint string) Unit {
	kind := KindText
	if nameHint != "" {
		kind = KindOf("text/plain", nameHint)
	}

	return Unit{Kind: kind, Text: text, MIME: "text/plain"}
}

// Process converts a resolved submission file into content units.
func (p *Processor) Process(meta FileMeta) []Unit {
	mimeType := strings.TrimSpace(meta.MIME)
	if mimeType == "" {
		mimeType = mimetype.Detect(meta.Data).String()
	}

	kind := KindOf(mimeType, meta.Name)
	log := p.logger.With().
		Str("file", meta.Name).
		Str("mime", mimeType).
		Str("kind", string(kind)).
		Logger()

	switch kind {
	case KindText, KindCode:
		return []Unit{p.textUnit(kind, mimeType, meta)}
	case KindImage:
		return []Unit{p.imageUnit(mimeType, meta, log)}
	default:
		return []Unit{p.documentUnit(mimeType, meta, log)}
	}
}

func (p *Processor) textUnit(kind Kind, mimeType string, meta FileMeta) Unit {
	text := string(meta.Data)
	if !utf8.ValidString(text) {
		return p.fallbackUnit(kind, mimeType, meta.Name, fmt.Errorf("content is not valid utf-8"))
	}

	if strings.Contains(strings.ToLower(mimeType), "html") {
		text = p.sanitizer.Sanitize(text)
	}

	return Unit{Kind: kind, Data: meta.Data, Text: text, MIME: mimeType}
}

func (p *Processor) documentUnit(mimeType string, meta FileMeta, log zerolog.Logger) Unit {
	if isCSV(mimeType, meta.Name) {
		description, err := describeCSV(meta.Data)
		if err != nil {
			log.Warn().Err(err).Msg("csv description failed, degrading to placeholder")
			return p.fallbackUnit(KindDocument, mimeType, meta.Name, err)
		}

		return Unit{Kind: KindDocument, Data: meta.Data, Text: description, MIME: mimeType}
	}

	// No dedicated extractor for this document kind; describe it instead of failing.
	placeholder := fmt.Sprintf(
		"This is a document file with MIME type %s. Content extraction is not available for this file type.",
		mimeType,
	)
	return Unit{Kind: KindDocument, Data: meta.Data, Text: placeholder, MIME: mimeType}
}

func (p *Processor) imageUnit(mimeType string, meta FileMeta, log zerolog.Logger) Unit {
	if !hasValidImageSignature(meta.Data, mimeType) {
		observability.InvalidImageSignatures().WithLabelValues(mimeType).Inc()
		log.Warn().Int("size_bytes", len(meta.Data)).
			Msg("image bytes do not match declared mime type signature")
	}

	if int64(len(meta.Data)) > p.maxImageBytes {
		observability.OversizedImages().Inc()
		log.Warn().Int("size_bytes", len(meta.Data)).Int64("limit_bytes", p.maxImageBytes).
			Msg("image exceeds soft size ceiling, provider may reject it")
	}

	return Unit{Kind: KindImage, Data: meta.Data, MIME: mimeType}
}

// fallbackUnit carries a diagnostic description in place of content that could
// not be extracted. This is the degraded path the pipeline relies on to keep a
// job alive after extraction errors.
func (p *Processor) fallbackUnit(kind Kind, mimeType, name string, cause error) Unit {
	observability.ExtractionFallbacks().Inc()
	p.logger.Warn().Err(cause).Str("file", name).Msg("content extraction degraded to placeholder")

	return Unit{
		Kind: KindText,
		Text: fmt.Sprintf("Failed to process %s file %q (%s): %v", kind, name, mimeType, cause),
		MIME: "text/plain",
	}
}

// describeCSV renders a bounded textual description of delimited tabular data:
// row and column counts, the header list, and up to five sample rows.
func describeCSV(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("csv content is not valid utf-8")
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	if len(lines) == 0 {
		return "", fmt.Errorf("csv file is empty")
	}

	headers := make([]string, 0)
	for _, h := range strings.Split(lines[0], ",") {
		if trimmed := strings.TrimSpace(h); trimmed != "" {
			headers = append(headers, trimmed)
		}
	}

	dataRows := lines[1:]

	var b strings.Builder
	fmt.Fprintf(&b, "CSV file with %d data rows and %d columns.\n", len(dataRows), len(headers))
	fmt.Fprintf(&b, "Headers: %s\n", strings.Join(headers, ", "))
	b.WriteString("Sample data:\n")

	sample := len(dataRows)
	if sample > 5 {
		sample = 5
	}
	for _, row := range dataRows[:sample] {
		b.WriteString(row)
		b.WriteString("\n")
	}

	return b.String(), nil
}
