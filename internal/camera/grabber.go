package camera

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// grabber starts a process that streams raw grayscale frames from a device.
// The returned stop function must terminate the process and release the
// device; it is safe to call more than once.
type grabber interface {
	Start(ctx context.Context, device string, width, height int) (io.ReadCloser, func() error, error)
}

// ffmpegGrabber shells out to ffmpeg's v4l2 input, emitting one gray byte per
// pixel on stdout. ffmpeg holds the device open for the life of the process,
// which is what enforces exclusive stream ownership.
type ffmpegGrabber struct {
	binary string
}

func newFFmpegGrabber(binary string) *ffmpegGrabber {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &ffmpegGrabber{binary: binary}
}

func (g *ffmpegGrabber) Start(ctx context.Context, device string, width, height int) (io.ReadCloser, func() error, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-i", device,
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	}
	cmd := exec.CommandContext(ctx, g.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("grabber stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start grabber: %w", err)
	}

	stop := func() error {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		// Wait reaps the process; the expected error after Kill is ignored.
		_ = cmd.Wait()
		return nil
	}
	return stdout, stop, nil
}
