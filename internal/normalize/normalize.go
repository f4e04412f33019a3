// Package normalize maps source-shaped raw records onto the canonical
// NormalizedRecord schema.
//
// Each source adapter package exports a Func for its own payload type. A
// Dispatcher composes them by source ID and applies the rules every source
// shares: a record without a usable title is dropped, provenance fields are
// filled from the raw record, and records with a DOI but no landing page
// point at https://doi.org/.
//
// The helpers in this package (CanonicalDOI, ParseDate, CleanText, Authors)
// are pure and safe for concurrent use.
package normalize

import (
	"fmt"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// Func normalizes one raw record from a single source.
//
// It returns (nil, nil) when the payload has no usable title and a
// *domain.MalformedRecordError when the payload cannot be interpreted.
type Func func(raw domain.RawRecord) (*domain.NormalizedRecord, error)

// Dispatcher routes raw records to the Func registered for their source.
// It is read-only after construction and safe for concurrent use.
type Dispatcher struct {
	funcs map[domain.SourceID]Func
}

// NewDispatcher creates a dispatcher from a per-source table.
func NewDispatcher(funcs map[domain.SourceID]Func) *Dispatcher {
	d := &Dispatcher{funcs: make(map[domain.SourceID]Func, len(funcs))}
	for id, fn := range funcs {
		d.funcs[id] = fn
	}
	return d
}

// Supports reports whether a Func is registered for the source.
func (d *Dispatcher) Supports(id domain.SourceID) bool {
	_, ok := d.funcs[id]
	return ok
}

// Normalize maps raw onto the canonical schema.
//
// A nil record with a nil error means the record was dropped for lacking a
// title. Errors wrap domain.ErrMalformedRecord.
func (d *Dispatcher) Normalize(raw domain.RawRecord) (*domain.NormalizedRecord, error) {
	fn, ok := d.funcs[raw.SourceID]
	if !ok {
		return nil, domain.NewMalformedRecordError(raw.SourceID, fmt.Sprintf("no normalizer for source %q", raw.SourceID))
	}
	if raw.Payload == nil {
		return nil, domain.NewMalformedRecordError(raw.SourceID, "empty payload")
	}

	rec, err := fn(raw)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	rec.Title = CleanText(rec.Title)
	if rec.Title == "" {
		return nil, nil
	}

	rec.SourceID = raw.SourceID
	rec.Disease = raw.Disease
	if rec.PublicationDate != nil {
		rec.PublicationYear = rec.PublicationDate.Year()
	}
	if rec.SourceURL == nil && rec.DOI != nil {
		rec.SourceURL = domain.StringPtr("https://doi.org/" + *rec.DOI)
	}
	if rec.Authors == nil {
		rec.Authors = []string{}
	}
	return rec, nil
}

// PayloadError reports a payload of an unexpected Go type.
func PayloadError(raw domain.RawRecord, want string) error {
	return domain.NewMalformedRecordError(raw.SourceID, fmt.Sprintf("payload is %T, want %s", raw.Payload, want))
}
