package collection

import (
	"context"
	"log/slog"

	"github.com/agentic-research/resfs/internal/resource"
)

// DuplexParams configure a Duplex.
type DuplexParams struct {
	Name string
	// Reader is the source side.
	Reader resource.Reader
	// Writer receives all writes and shadows the source on reads.
	Writer resource.ReaderWriter
	Logger *slog.Logger
}

// Duplex pairs a read-only source with a writable overlay. Reads prefer the
// overlay; writes always go to the overlay.
type Duplex struct {
	name     string
	source   resource.Reader
	overlay  resource.ReaderWriter
	combined *ReaderCollectionPrioritized
	logger   *slog.Logger
}

// NewDuplex creates a Duplex.
func NewDuplex(p DuplexParams) (*Duplex, error) {
	if p.Writer == nil {
		return nil, &resource.InvalidOptionsError{Op: "duplex", Reason: "a writer is required"}
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Duplex{
		name:    p.Name,
		source:  p.Reader,
		overlay: p.Writer,
		combined: NewReaderCollectionPrioritized(Params{
			Name:    p.Name,
			Readers: []resource.Reader{p.Writer, p.Reader},
			Logger:  logger,
		}),
		logger: logger,
	}, nil
}

// Name returns the collection name.
func (d *Duplex) Name() string { return d.name }

// Source returns the read-only side.
func (d *Duplex) Source() resource.Reader { return d.source }

// Overlay returns the writable side.
func (d *Duplex) Overlay() resource.ReaderWriter { return d.overlay }

// ByGlob implements resource.Reader over overlay and source.
func (d *Duplex) ByGlob(ctx context.Context, patterns []string, opts resource.GlobOptions) ([]*resource.Resource, error) {
	return d.combined.ByGlob(ctx, patterns, opts)
}

// ByPath implements resource.Reader over overlay and source.
func (d *Duplex) ByPath(ctx context.Context, p string, opts resource.GlobOptions) (*resource.Resource, error) {
	return d.combined.ByPath(ctx, p, opts)
}

// ByGlobSource matches patterns against the source only, but returns the
// overlay's version of every matched path that was written since. Paths that
// only exist in the overlay are not returned.
func (d *Duplex) ByGlobSource(ctx context.Context, patterns []string, opts resource.GlobOptions) ([]*resource.Resource, error) {
	ctx, tr, owner := resource.StartTrace(ctx, d.logger, "byGlobSource", patterns...)
	tr.Collection(d.name)

	var out []*resource.Resource
	if d.source != nil {
		found, err := d.source.ByGlob(ctx, patterns, opts)
		if err != nil {
			return nil, err
		}
		out = make([]*resource.Resource, 0, len(found))
		for _, r := range found {
			written, err := d.overlay.ByPath(ctx, r.Path(), opts)
			if err != nil {
				return nil, err
			}
			if written != nil {
				r = written
			}
			if d.name != "" {
				r.PushCollection(d.name)
			}
			out = append(out, r)
		}
	}
	if owner {
		tr.Finish(ctx, len(out))
	}
	return out, nil
}

// Write implements resource.Writer. The source is never touched.
func (d *Duplex) Write(ctx context.Context, r *resource.Resource, opts resource.WriteOptions) error {
	return d.overlay.Write(ctx, r, opts)
}

var _ resource.ReaderWriter = (*Duplex)(nil)
