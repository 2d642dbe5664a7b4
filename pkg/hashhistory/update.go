package hashhistory

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vango-dev/hashhistory/pkg/location"
)

const (
	methodPush    = "push"
	methodReplace = "replace"
)

// Push adds a history entry for loc. Pushing the path already in the
// fragment writes nothing and logs a warning; it is not an error.
//
// Errors come only from StateStorage, when the window has no pushState and
// loc carries state.
func (p *Protocol) Push(ctx context.Context, loc location.Location) error {
	return p.update(ctx, methodPush, loc, func(path string, state any) bool {
		if p.hashPath() == path {
			p.logger.Warn("You cannot PUSH the same path using hash history", "path", path)
			return false
		}
		p.writer.push(path, state)
		return true
	})
}

// Replace overwrites the current history entry with loc. Replacing onto the
// path already in the fragment writes nothing.
func (p *Protocol) Replace(ctx context.Context, loc location.Location) error {
	return p.update(ctx, methodReplace, loc, func(path string, state any) bool {
		if p.hashPath() == path {
			return false
		}
		p.writer.replace(path, state)
		return true
	})
}

// update encodes loc, persists its state when the writer cannot carry it,
// records loc as last-known and hands the path to write. write reports
// whether it changed the fragment.
func (p *Protocol) update(ctx context.Context, method string, loc location.Location, write func(path string, state any) bool) error {
	ctx, span := p.tracer.Start(ctx, "hashhistory."+method)
	defer span.End()

	persist := loc.State != nil && !p.writer.native()
	if persist && loc.Key == "" {
		// The fragment can only carry alphanumeric keys.
		loc.Key = location.CreateKey()
	}
	path := p.coder.EncodePath(location.CreatePath(loc))

	if persist {
		path = location.AddQueryValue(path, p.queryKey, loc.Key)
		if err := p.storage.SaveState(ctx, loc.Key, loc.State); err != nil {
			err = fmt.Errorf("save state %s: %w", loc.Key, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		p.metrics.persisted()
	}

	// Set before writing: a window that notifies synchronously must already
	// see loc as last-known.
	p.tracker.Set(loc)

	written := write(path, loc.State)
	if written {
		p.metrics.write(method, p.writer.name())
	} else {
		p.metrics.redundant(method)
	}

	span.SetAttributes(
		attribute.String("hashhistory.path", path),
		attribute.String("hashhistory.key", loc.Key),
		attribute.String("hashhistory.strategy", p.writer.name()),
		attribute.Bool("hashhistory.written", written),
	)
	return nil
}
