package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/nao1215/reviewharvest/internal/model"
	"github.com/nao1215/reviewharvest/internal/quota"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("sink closed")

// Sink receives accepted records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Write(ctx context.Context, rec model.Record) error
}

// JSONL appends records to a line-delimited JSON file.
type JSONL struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// OpenJSONL opens path for appending, creating it and its parent
// directories when needed.
func OpenJSONL(path string) (*JSONL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // output path is user-provided
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return &JSONL{path: path, file: f}, nil
}

// Path returns the output file path.
func (s *JSONL) Path() string {
	return s.path
}

// Write appends rec as one line.
func (s *JSONL) Write(ctx context.Context, rec model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := encodeLine(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// Close flushes and closes the file. It is safe to call more than once.
func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close() //nolint:errcheck // the sync error is reported
		return fmt.Errorf("failed to sync output file: %w", err)
	}
	return s.file.Close()
}

// encodeLine renders rec with a trailing newline. HTML characters are kept
// as is so review text stays readable.
func encodeLine(rec model.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return buf.Bytes(), nil
}

// Ledger stores fingerprints of written records for cross-run dedup.
type Ledger interface {
	Remember(ctx context.Context, src model.Source, fp quota.Fingerprint) error
}

// Remembering wraps a Sink and records the fingerprint of every record the
// inner sink wrote successfully. Ledger failures are logged, never returned:
// the record already reached the output.
type Remembering struct {
	inner  Sink
	ledger Ledger
	logger *slog.Logger
}

// NewRemembering returns a Sink that writes to inner and then to ledger.
func NewRemembering(inner Sink, ledger Ledger, logger *slog.Logger) *Remembering {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remembering{inner: inner, ledger: ledger, logger: logger}
}

// Write writes rec and remembers its fingerprint.
func (r *Remembering) Write(ctx context.Context, rec model.Record) error {
	if err := r.inner.Write(ctx, rec); err != nil {
		return err
	}
	if err := r.ledger.Remember(ctx, rec.Source, quota.FingerprintOf(rec.Review)); err != nil {
		r.logger.Warn("failed to remember fingerprint",
			"source", rec.Source,
			"error", err,
		)
	}
	return nil
}
