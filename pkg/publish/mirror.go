package publish

import (
	"context"
	"github.com/dancavallaro/serial2influx/pkg/lineproto"
)

// Mirror receives every point after the primary store has accepted it.
// Mirrors share the fail-fast policy: an error stops the bridge.
type Mirror interface {
	Name() string
	Mirror(ctx context.Context, point lineproto.Point) error
	Close() error
}
