package gpu

import (
	"context"
	"fmt"
	"os"
)

// FileProber reads a captured nvidia-smi output file on every probe. It is
// the mock backend used for tests and for hosts without a GPU; callers must
// treat it identically to SMIProber.
type FileProber struct {
	Path string
}

func (p *FileProber) Probe(ctx context.Context) ([]Device, error) {
	if p.Path == "" {
		return nil, fmt.Errorf("mock probe: no data path configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("mock probe: %w", err)
	}
	return Parse(string(b)), nil
}
