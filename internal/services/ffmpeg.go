package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FFmpegService wraps the ffmpeg/ffprobe binaries for the export pipeline:
// boundary-frame extraction and stream-copy concatenation.
type FFmpegService struct {
	tempDir string
}

func NewFFmpegService(tempDir string) (*FFmpegService, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &FFmpegService{tempDir: tempDir}, nil
}

// FramePosition selects which boundary frame to extract from a clip.
type FramePosition string

const (
	FrameFirst FramePosition = "first"
	FrameLast  FramePosition = "last"
)

// ExtractFrame pulls the first or last frame of a video as PNG bytes.
// The last frame is sampled 0.1s before the end since seeking to the exact
// duration can land past the final frame.
func (s *FFmpegService) ExtractFrame(ctx context.Context, videoPath string, position FramePosition) ([]byte, error) {
	outPath := filepath.Join(s.tempDir, fmt.Sprintf("frame_%s.png", uuid.New()))
	defer os.Remove(outPath)

	var args []string
	switch position {
	case FrameFirst:
		args = []string{
			"-i", videoPath,
			"-vf", "select=eq(n\\,0)",
			"-vframes", "1",
			"-y",
			outPath,
		}
	case FrameLast:
		duration, err := s.VideoDuration(ctx, videoPath)
		if err != nil {
			return nil, err
		}
		seek := duration - 0.1
		if seek < 0 {
			seek = 0
		}
		args = []string{
			"-ss", fmt.Sprintf("%.3f", seek),
			"-i", videoPath,
			"-vframes", "1",
			"-y",
			outPath,
		}
	default:
		return nil, fmt.Errorf("unknown frame position %q", position)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction failed (%s): %w", position, err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted frame: %w", err)
	}
	return data, nil
}

// Concatenate joins the ordered clips into one output file at the stream-copy
// level. Clips are already encoded compatibly; no re-encode, no crossfade.
func (s *FFmpegService) Concatenate(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	// Unique list file per call so concurrent exports don't collide
	listPath := filepath.Join(s.tempDir, fmt.Sprintf("concat_%s.txt", uuid.New()))
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}

	for _, path := range clipPaths {
		fmt.Fprintf(f, "file '%s'\n", path)
	}
	f.Close()
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}

	return nil
}

// VideoDuration returns the duration of a video file in seconds via ffprobe.
func (s *FFmpegService) VideoDuration(ctx context.Context, videoPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return durationSec, nil
}

// TempDir creates a scoped working directory under the service's temp root.
// Callers must remove it when done.
func (s *FFmpegService) TempDir(prefix string) (string, error) {
	dir, err := os.MkdirTemp(s.tempDir, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to create scoped temp dir: %w", err)
	}
	return dir, nil
}
