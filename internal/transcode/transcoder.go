package transcode

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FFmpeg transcodes raw recording artifacts into a distributable mp4.
// CPU-heavy work is delegated to the ffmpeg subprocess awaited under ctx so
// the caller's loop stays responsive.
type FFmpeg struct {
	path string
	log  *zap.Logger
}

// NewFFmpeg creates an ffmpeg transcoder.
func NewFFmpeg(path string, log *zap.Logger) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FFmpeg{path: path, log: log}
}

// buildEncodeArgs builds the ffmpeg arguments for the distributable encode.
func buildEncodeArgs(inputPath, outputPath string) []string {
	return []string{
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}
}

// outputPathFor derives the encoded artifact path next to the raw input.
func outputPathFor(inputPath string) string {
	dir := filepath.Dir(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, base+"-final.mp4")
}

// Encode transcodes the raw artifact and returns the output path.
func (f *FFmpeg) Encode(ctx context.Context, inputPath string, weddingID uuid.UUID) (string, error) {
	outputPath := outputPathFor(inputPath)
	cmd := exec.CommandContext(ctx, f.path, buildEncodeArgs(inputPath, outputPath)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		tail := string(out)
		if len(tail) > 512 {
			tail = tail[len(tail)-512:]
		}
		return "", fmt.Errorf("ffmpeg encode: %w: %s", err, tail)
	}
	f.log.Info("transcode completed",
		zap.String("wedding_id", weddingID.String()),
		zap.String("output", outputPath))
	return outputPath, nil
}
