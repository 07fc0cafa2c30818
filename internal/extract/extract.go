package extract

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"

	"resumeguard/internal/config"
	"resumeguard/internal/errors"
	"resumeguard/internal/types"

	"github.com/sony/gobreaker/v2"
)

// Extractor decodes one document format into glyphs, operators and text.
// A partially decoded document may be returned together with an error.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*types.Document, error)
}

// Limits caps how much of a document is decoded. Zero means unlimited.
type Limits struct {
	MaxPages     int
	MaxGlyphs    int
	MaxOperators int
	MaxEntrySize int64 // decompressed size of one archive member
}

// errExtractorPanicked marks adapter crashes. Only these count against the breaker;
// malformed input is a property of one document.
var errExtractorPanicked = stderrors.New("extractor panicked")

// FailureFunc is called for every extraction that did not complete cleanly
type FailureFunc func(ctx context.Context, docType types.DocumentType, err error)

// Registry dispatches to the adapter for a document type. A circuit breaker
// tracks adapter crashes for health reporting. Extract never fails and never
// skips an adapter.
type Registry struct {
	adapters  map[types.DocumentType]Extractor
	breaker   *gobreaker.CircuitBreaker[*types.Document]
	logger    *errors.Logger
	onFailure atomic.Pointer[FailureFunc]
}

// NewRegistry creates a registry with the PDF and DOCX adapters.
func NewRegistry(cfg config.ExtractionConfig, logger *errors.Logger) *Registry {
	if logger == nil {
		logger = errors.Discard()
	}
	limits := Limits{
		MaxPages:     cfg.MaxPages,
		MaxGlyphs:    cfg.MaxGlyphs,
		MaxOperators: cfg.MaxOperators,
		MaxEntrySize: cfg.MaxEntrySize,
	}
	r := &Registry{
		adapters: map[types.DocumentType]Extractor{
			types.DocumentTypePDF:  NewPDFExtractor(limits),
			types.DocumentTypeDOCX: NewDOCXExtractor(limits),
		},
		logger: logger,
	}
	r.breaker = newBreaker(cfg.CircuitBreaker, logger)
	return r
}

// newBreaker returns nil when the breaker is disabled
func newBreaker(cfg config.CircuitBreakerConfig, logger *errors.Logger) *gobreaker.CircuitBreaker[*types.Document] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        "extraction",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		IsSuccessful: func(err error) bool {
			return !stderrors.Is(err, errExtractorPanicked)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests &&
				failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
				"failure_threshold", cfg.FailureThreshold)
		},
	}
	return gobreaker.NewCircuitBreaker[*types.Document](settings)
}

// Register replaces the adapter for a document type.
func (r *Registry) Register(docType types.DocumentType, e Extractor) {
	r.adapters[docType] = e
}

// OnFailure installs a hook for failed extractions, typically a metrics counter.
func (r *Registry) OnFailure(fn FailureFunc) {
	r.onFailure.Store(&fn)
}

// Extract decodes data as docType. Corrupt or unsupported input yields a
// best-effort partial document, possibly empty, never nil.
func (r *Registry) Extract(ctx context.Context, data []byte, docType types.DocumentType) *types.Document {
	adapter, ok := r.adapters[docType]
	if !ok {
		r.fail(ctx, docType, errors.NewExtractionError(errors.ErrCodeUnsupportedDocument,
			fmt.Sprintf("unsupported document type %q", docType), nil))
		return &types.Document{Type: docType}
	}

	run := func() (doc *types.Document, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = errors.NewExtractionError(errors.ErrCodeExtractionFailed,
					fmt.Sprintf("adapter crashed: %v", rec), errExtractorPanicked)
			}
		}()
		return adapter.Extract(ctx, data)
	}

	var doc *types.Document
	var err error
	if r.breaker == nil {
		doc, err = run()
	} else {
		doc, err = r.breaker.Execute(run)
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			// An open circuit degrades health, not detection
			r.logger.Warn("Extraction circuit open, running adapter anyway",
				"document_type", string(docType),
				"state", r.breaker.State().String())
			doc, err = run()
		}
	}

	if doc == nil {
		doc = &types.Document{Type: docType}
	}
	if err != nil {
		r.fail(ctx, docType, err)
	}
	return doc
}

func (r *Registry) fail(ctx context.Context, docType types.DocumentType, err error) {
	r.logger.LogError(err, "Extraction degraded to partial document", "document_type", string(docType))
	if fn := r.onFailure.Load(); fn != nil {
		(*fn)(ctx, docType, err)
	}
}

// Stats returns circuit breaker statistics
func (r *Registry) Stats() map[string]any {
	if r.breaker == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    r.breaker.Name(),
		"state":   r.breaker.State().String(),
		"counts":  r.breaker.Counts(),
		"enabled": true,
	}
}

// IsHealthy reports whether the circuit breaker is closed
func (r *Registry) IsHealthy() bool {
	if r.breaker == nil {
		return true
	}
	return r.breaker.State() == gobreaker.StateClosed
}

// builder accumulates a Document while enforcing Limits
type builder struct {
	doc    *types.Document
	limits Limits
	capped bool
}

func newBuilder(docType types.DocumentType, limits Limits) *builder {
	return &builder{
		doc: &types.Document{
			Type:      docType,
			Pages:     []types.Page{},
			Glyphs:    []types.Glyph{},
			Operators: []types.ContentStreamOperator{},
		},
		limits: limits,
	}
}

func (b *builder) addPage(p types.Page) bool {
	if b.limits.MaxPages > 0 && len(b.doc.Pages) >= b.limits.MaxPages {
		b.capped = true
		return false
	}
	b.doc.Pages = append(b.doc.Pages, p)
	return true
}

func (b *builder) addGlyph(g types.Glyph) {
	if b.limits.MaxGlyphs > 0 && len(b.doc.Glyphs) >= b.limits.MaxGlyphs {
		b.capped = true
		return
	}
	b.doc.Glyphs = append(b.doc.Glyphs, g)
}

func (b *builder) addOperator(op types.ContentStreamOperator) {
	if b.limits.MaxOperators > 0 && len(b.doc.Operators) >= b.limits.MaxOperators {
		b.capped = true
		return
	}
	b.doc.Operators = append(b.doc.Operators, op)
}
