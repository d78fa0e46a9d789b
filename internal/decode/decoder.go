package decode

import (
	"context"
	"log/slog"

	"claimscan/internal/camera"
	"claimscan/internal/config"
	"claimscan/internal/logging"
)

// Decoder attempts to extract a QR payload from a single frame. The boolean
// is false when the frame holds no decodable code; that is routine (partial
// frames, motion blur, non-QR content) and not an error.
type Decoder interface {
	Decode(ctx context.Context, frame camera.Frame) (string, bool, error)
}

// Pipeline runs the hardware-assisted detector when one was found at
// construction time and falls back to the software decoder otherwise or on
// detector failure.
type Pipeline struct {
	logger   *slog.Logger
	hardware Decoder
	software Decoder
}

// NewPipeline builds the decode pipeline, capability-checking the hardware
// detector once.
func NewPipeline(cfg *config.Config, logger *slog.Logger) *Pipeline {
	pipelineLogger := logging.NewComponentLogger(logger, "frame-decoder")

	var hardware Decoder
	if cfg.Decoder.HardwareEnabled {
		if detector, ok := newHardwareDetector(cfg, pipelineLogger); ok {
			hardware = detector
			pipelineLogger.Info("hardware-assisted detector available",
				logging.String("binary", cfg.DetectorBinary()),
				logging.String(logging.FieldEventType, "detector_selected"),
			)
		} else {
			pipelineLogger.Info("hardware-assisted detector unavailable, using software decoder",
				logging.String(logging.FieldEventType, "detector_fallback"),
			)
		}
	}

	return &Pipeline{
		logger:   pipelineLogger,
		hardware: hardware,
		software: newSoftwareDecoder(),
	}
}

// Decode tries the hardware path first, falling back to software on detector
// absence or a non-fatal detector failure.
func (p *Pipeline) Decode(ctx context.Context, frame camera.Frame) (string, bool, error) {
	if p.hardware != nil {
		value, ok, err := p.hardware.Decode(ctx, frame)
		if err != nil {
			// Detector failures are expected to be transient; the software
			// path still gets a chance at the frame.
			p.logger.Debug("hardware detect failed, falling back", logging.Error(err))
		} else if ok {
			return value, true, nil
		}
	}
	return p.software.Decode(ctx, frame)
}
