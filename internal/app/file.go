package app

import (
	"context"
	"os"

	"github.com/luki/o2ring/internal/feed"
	"github.com/luki/o2ring/internal/source"
)

// fileSource closes its capture file once the lines are consumed.
type fileSource struct {
	source.Lines
	file *os.File
}

func (f *fileSource) Run(ctx context.Context, sink feed.Sink) error {
	defer f.file.Close()
	return f.Lines.Run(ctx, sink)
}
