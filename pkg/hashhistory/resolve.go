package hashhistory

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vango-dev/hashhistory/pkg/location"
)

// CurrentLocation resolves the fragment into a Location.
//
// If the decoded path carries queryKey, its value is the location's key:
// the parameter is stripped and state is read from StateStorage (missing
// state is nil, not an error). Otherwise state is the window's native
// history state. Only a StateStorage failure produces an error.
func (p *Protocol) CurrentLocation(ctx context.Context) (location.Location, error) {
	ctx, span := p.tracer.Start(ctx, "hashhistory.resolve")
	defer span.End()

	loc, err := p.currentLocation(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return location.Location{}, err
	}
	span.SetAttributes(
		attribute.String("hashhistory.path", loc.Path()),
		attribute.String("hashhistory.key", loc.Key),
	)
	return loc, nil
}

func (p *Protocol) currentLocation(ctx context.Context) (location.Location, error) {
	path := p.coder.DecodePath(p.hashPath())
	key := location.QueryValue(path, p.queryKey)

	var state any
	if key != "" {
		path = location.StripQueryValue(path, p.queryKey)
		s, err := p.storage.ReadState(ctx, key)
		if err != nil {
			return location.Location{}, fmt.Errorf("read state %s: %w", key, err)
		}
		state = s
	} else {
		state = p.win.HistoryState()
	}

	init := location.ParsePath(path)
	init.State = state

	return location.Create(init, location.Pop, key), nil
}
