package video

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os/exec"
	"strings"
	"time"

	"github.com/surfvision/camtuner/internal/logger"
)

// Decoder turns Annex-B H.264 keyframes into decoded frames by piping them
// through an external ffmpeg process. Decoding happens a frame at a time,
// minutes apart, so process spawn cost is irrelevant and cgo stays out of
// the build.
type Decoder struct {
	ffmpegPath string
	log        *logger.Logger
}

// NewDecoder locates ffmpeg and creates a decoder
func NewDecoder(log *logger.Logger) (*Decoder, error) {
	path, err := detectFFmpeg()
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		ffmpegPath: path,
		log:        log,
	}
	log.Info("Video decoder initialized", "ffmpeg", path)
	return d, nil
}

// detectFFmpeg finds the ffmpeg executable
func detectFFmpeg() (string, error) {
	paths := []string{"ffmpeg", "/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg"}

	for _, path := range paths {
		cmd := exec.Command(path, "-version")
		if err := cmd.Run(); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("ffmpeg not found in PATH or common locations")
}

// decodeArgs builds the ffmpeg invocation: raw H.264 on stdin, one frame
// as MJPEG on stdout
func decodeArgs() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "2",
		"pipe:1",
	}
}

// DecodeKeyFrame decodes one Annex-B keyframe buffer into a Frame
func (d *Decoder) DecodeKeyFrame(ctx context.Context, annexB []byte) (*Frame, error) {
	if len(annexB) == 0 {
		return nil, fmt.Errorf("empty keyframe buffer")
	}

	capturedAt := time.Now()

	cmd := exec.CommandContext(ctx, d.ffmpegPath, decodeArgs()...)
	cmd.Stdin = bytes.NewReader(annexB)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	img, err := jpeg.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}

	frame := NewFrame(img, capturedAt)
	d.log.Debug("Decoded keyframe",
		"input_bytes", len(annexB),
		"width", frame.Width,
		"height", frame.Height)
	return frame, nil
}

// Version returns the ffmpeg version line
func (d *Decoder) Version() (string, error) {
	output, err := exec.Command(d.ffmpegPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}
