package plugin

import (
	"context"

	"firestige.xyz/edie/pkg/novatel"
)

// Reporter delivers parsed messages to an output.
type Reporter interface {
	Plugin
	Report(ctx context.Context, res *novatel.Result) error
	Flush(ctx context.Context) error
}
