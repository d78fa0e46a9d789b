package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"claimscan/internal/camera"
	"claimscan/internal/config"
)

// zbarNoSymbolExit is zbarimg's exit code when the image held no barcode.
const zbarNoSymbolExit = 4

type commandRunner interface {
	Output(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

type execCommandRunner struct{}

func (execCommandRunner) Output(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	return cmd.Output()
}

// hardwareDetector shells out to zbarimg, feeding the frame as a binary PGM
// on stdin.
type hardwareDetector struct {
	logger  *slog.Logger
	runner  commandRunner
	binary  string
	timeout time.Duration

	// pgm is the reusable encode buffer; it grows only when the frame
	// dimensions change.
	pgm []byte
}

// newHardwareDetector capability-checks the detector binary. The second
// return is false when the binary is not installed.
func newHardwareDetector(cfg *config.Config, logger *slog.Logger) (*hardwareDetector, bool) {
	binary := cfg.DetectorBinary()
	if _, err := exec.LookPath(binary); err != nil {
		return nil, false
	}
	return &hardwareDetector{
		logger:  logger,
		runner:  execCommandRunner{},
		binary:  binary,
		timeout: time.Duration(cfg.Decoder.DetectTimeout) * time.Second,
	}, true
}

func (d *hardwareDetector) Decode(ctx context.Context, frame camera.Frame) (string, bool, error) {
	detectCtx := ctx
	var cancel context.CancelFunc
	if d.timeout > 0 {
		detectCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	d.pgm = encodePGM(d.pgm, frame)
	output, err := d.runner.Output(detectCtx, d.pgm, d.binary,
		"--raw", "--quiet",
		"-Sdisable", "-Sqrcode.enable",
		"PNM:-",
	)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == zbarNoSymbolExit {
			return "", false, nil
		}
		return "", false, fmt.Errorf("zbarimg: %w", err)
	}

	value := firstLine(string(output))
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// encodePGM writes the frame as a binary PGM (P5) into buf, reusing its
// backing array when the frame dimensions have not changed.
func encodePGM(buf []byte, frame camera.Frame) []byte {
	header := fmt.Sprintf("P5\n%d %d\n255\n", frame.Width, frame.Height)
	need := len(header) + len(frame.Pix)
	if cap(buf) < need {
		buf = make([]byte, 0, need)
	}
	buf = buf[:0]
	buf = append(buf, header...)
	buf = append(buf, frame.Pix...)
	return buf
}

func firstLine(output string) string {
	if idx := strings.IndexByte(output, '\n'); idx >= 0 {
		output = output[:idx]
	}
	return strings.TrimSpace(output)
}
