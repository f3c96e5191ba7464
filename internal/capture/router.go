package capture

import (
	"context"
	"fmt"

	"github.com/bryanchriswhite/drawfilter/internal/config"
	"github.com/bryanchriswhite/drawfilter/internal/logger"
)

// Open starts the source selected by cfg. When GStreamer cannot start it
// falls back to the test pattern so the rest of the pipeline still runs.
func Open(ctx context.Context, cfg config.SourceConfig) (Source, error) {
	log := logger.WithComponent("capture")
	geom := Config{Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS}

	switch cfg.Kind {
	case config.SourceGStreamer:
		g := NewGStreamer(geom, cfg.Pipeline)
		if err := g.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("GStreamer source not available, using test pattern")
			break
		}
		return g, nil
	case config.SourcePattern, "":
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}

	p := NewPattern(geom)
	if err := p.Start(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
