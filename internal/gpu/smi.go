package gpu

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

const smiTimeout = 10 * time.Second

// SMIProber shells out to nvidia-smi on every probe.
type SMIProber struct {
	// Path overrides the nvidia-smi executable location. Empty means $PATH.
	Path string
}

func (p *SMIProber) Probe(ctx context.Context) ([]Device, error) {
	bin := p.Path
	if bin == "" {
		bin = "nvidia-smi"
	}
	ctx, cancel := context.WithTimeout(ctx, smiTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, bin).Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("nvidia-smi timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("nvidia-smi: %w", err)
	}
	return Parse(string(out)), nil
}
