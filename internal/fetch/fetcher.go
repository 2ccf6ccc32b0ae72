package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/feedforward/feedforward-api/internal/observability"
)

// Error reports a failed reference resolution, retaining the classification
// branch that was taken so misclassifications can be diagnosed from logs alone.
type Error struct {
	Reference string
	Branch    string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s via %s: %v", truncate(e.Reference, 60), e.Branch, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ObjectStore is the subset of the object storage client the resolver needs.
type ObjectStore interface {
	// PresignedGet returns a time-limited URL granting read access to the object.
	PresignedGet(ctx context.Context, bucket, object string, expiry time.Duration) (string, error)
	// Download streams the object through the authenticated SDK path.
	Download(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// Artifact is the outcome of a successful resolution: the raw bytes plus a
// local file path for consumers that need one. Release removes the backing
// temporary file; it is idempotent and never panics. Artifacts are private to
// the job that created them.
type Artifact struct {
	Bytes     []byte
	LocalPath string

	releaseOnce sync.Once
	releaseFn   func()
}

// Release deletes the temporary file backing the artifact, if any. Safe to
// call any number of times.
func (a *Artifact) Release() {
	a.releaseOnce.Do(func() {
		if a.releaseFn != nil {
			a.releaseFn()
		}
	})
}

// Config tunes the resolver.
type Config struct {
	Bucket       string
	SignedURLTTL time.Duration
	HTTPTimeout  time.Duration
}

// Resolver turns submission file references into local byte buffers. It owns
// the lifecycle of any temporary files it creates.
type Resolver struct {
	store  ObjectStore
	client *http.Client
	cfg    Config
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewResolver constructs a resolver backed by the given object store.
func NewResolver(store ObjectStore, cfg Config, logger zerolog.Logger) *Resolver {
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 60 * time.Minute
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 2 * time.Minute
	}

	return &Resolver{
		store:  store,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:    cfg,
		logger: logger.With().Str("component", "fetch_resolver").Logger(),
		tracer: otel.Tracer("github.com/feedforward/feedforward-api/internal/fetch"),
	}
}

// Resolve classifies the reference and downloads it. The hint MIME type, when
// known, only influences the temporary file extension. Callers must call
// Release on the returned artifact when done.
func (r *Resolver) Resolve(parent context.Context, reference, hintMIME string) (*Artifact, error) {
	ctx, span := r.tracer.Start(parent, "fetch.resolve")
	defer span.End()

	if strings.TrimSpace(reference) == "" {
		err := &Error{Reference: reference, Branch: "none", Err: fmt.Errorf("empty reference")}
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty reference")
		return nil, err
	}

	classification := Classify(reference)
	branch := classification.Kind.String()
	observability.FetchBranch().WithLabelValues(branch).Inc()
	span.SetAttributes(attribute.String("fetch.branch", branch))

	log := r.logger.With().
		Str("branch", branch).
		Str("reference", truncate(reference, 60)).
		Logger()
	log.Info().Msg("resolving submission reference")

	var (
		data []byte
		err  error
	)

	switch classification.Kind {
	case KindLocal:
		data, err = os.ReadFile(reference)
		if err == nil {
			log.Info().Int("size_bytes", len(data)).Msg("read local file")
			return &Artifact{Bytes: data, LocalPath: reference}, nil
		}
	case KindHTTPURL:
		data, err = r.httpGet(ctx, reference)
	case KindObjectStoragePath:
		data, err = r.fetchObject(ctx, log, r.cfg.Bucket, classification.Object)
	case KindObjectStorageURI:
		bucket := classification.Bucket
		if bucket == "" {
			bucket = r.cfg.Bucket
		}
		data, err = r.fetchObject(ctx, log, bucket, classification.Object)
	}

	if err != nil {
		ferr := &Error{Reference: reference, Branch: branch, Err: err}
		span.RecordError(ferr)
		span.SetStatus(codes.Error, "resolution failed")
		log.Error().Err(err).Msg("failed to resolve reference")
		return nil, ferr
	}

	artifact, err := r.spill(data, reference, hintMIME)
	if err != nil {
		ferr := &Error{Reference: reference, Branch: branch, Err: err}
		span.RecordError(ferr)
		span.SetStatus(codes.Error, "temp spill failed")
		return nil, ferr
	}

	span.SetAttributes(attribute.Int("fetch.size_bytes", len(data)))
	log.Info().Int("size_bytes", len(data)).Str("temp_path", artifact.LocalPath).Msg("reference resolved")
	return artifact, nil
}

// fetchObject tries the signed-URL route first and falls back to a native
// authenticated download. Both routes yield identical artifact semantics.
func (r *Resolver) fetchObject(ctx context.Context, log zerolog.Logger, bucket, object string) ([]byte, error) {
	if r.store == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}

	if object == "" {
		return nil, fmt.Errorf("object key must not be empty")
	}

	signedURL, err := r.store.PresignedGet(ctx, bucket, object, r.cfg.SignedURLTTL)
	if err == nil {
		data, httpErr := r.httpGet(ctx, signedURL)
		if httpErr == nil {
			log.Info().Str("bucket", bucket).Str("object", object).Msg("downloaded via signed url")
			return data, nil
		}
		err = httpErr
	}

	log.Warn().Err(err).Str("bucket", bucket).Str("object", object).
		Msg("signed url download failed, falling back to native download")

	body, err := r.store.Download(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("native download: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("native download read: %w", err)
	}

	log.Info().Str("bucket", bucket).Str("object", object).Msg("downloaded via native sdk")
	return data, nil
}

func (r *Resolver) httpGet(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http get: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return data, nil
}

// spill writes the bytes to a uniquely named temporary file so consumers that
// require a filesystem path have one, and wires the release function.
func (r *Resolver) spill(data []byte, reference, hintMIME string) (*Artifact, error) {
	path := filepath.Join(os.TempDir(), uuid.NewString()+tempExtension(reference, hintMIME))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	log := r.logger
	return &Artifact{
		Bytes:     data,
		LocalPath: path,
		releaseFn: func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("temp_path", path).Msg("failed to remove temporary file")
			}
		},
	}, nil
}

func tempExtension(reference, hintMIME string) string {
	if hintMIME != "" {
		if exts, err := mime.ExtensionsByType(hintMIME); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}

	if ext := filepath.Ext(reference); ext != "" && len(ext) <= 8 && !strings.ContainsAny(ext, "/?&=") {
		return ext
	}

	return ".tmp"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
