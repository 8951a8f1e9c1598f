// Package videogen assembles story panels into a short video by
// shelling out to ffmpeg.
package videogen

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/metrics"
)

// Assembler renders videos from panel images.
type Assembler struct {
	ffmpegPath  string
	ffprobePath string
	log         *logger.Logger
}

// NewAssembler creates an Assembler using ffmpeg/ffprobe from PATH.
func NewAssembler(log *logger.Logger) *Assembler {
	return &Assembler{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		log:         log,
	}
}

// Available reports whether ffmpeg can be found.
func (a *Assembler) Available() bool {
	_, err := exec.LookPath(a.ffmpegPath)
	return err == nil
}

// GenerateStoryVideo renders the given panel images (nil slots are
// skipped) into an mp4. audio, when present, is muxed in and the video
// is cut to its length. Returns the video bytes and its duration in
// seconds.
func (a *Assembler) GenerateStoryVideo(ctx context.Context, panelImages [][]byte, audio []byte, styleName string) ([]byte, float64, error) {
	if !a.Available() {
		return nil, 0, fmt.Errorf("ffmpeg is not available")
	}

	var images [][]byte
	for _, img := range panelImages {
		if len(img) > 0 {
			images = append(images, img)
		}
	}
	if len(images) == 0 {
		return nil, 0, fmt.Errorf("no panel images to assemble")
	}

	tempDir, err := os.MkdirTemp("", "ananse-video-")
	if err != nil {
		return nil, 0, err
	}
	defer os.RemoveAll(tempDir)

	imagePaths := make([]string, len(images))
	for i, img := range images {
		imagePaths[i] = filepath.Join(tempDir, fmt.Sprintf("panel_%03d.png", i))
		if err := os.WriteFile(imagePaths[i], img, 0o600); err != nil {
			return nil, 0, err
		}
	}

	audioPath := ""
	if len(audio) > 0 {
		audioPath = filepath.Join(tempDir, "audio.mp3")
		if err := os.WriteFile(audioPath, audio, 0o600); err != nil {
			return nil, 0, err
		}
	}

	style := StyleFor(styleName)
	outputPath := filepath.Join(tempDir, "output.mp4")

	args := buildFFmpegArgs(imagePaths, audioPath, outputPath, style)
	a.log.Info("Assembling story video",
		"panels", len(images),
		"style", styleName,
		"audio", audioPath != "",
	)

	cmd := exec.CommandContext(ctx, a.ffmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		metrics.VideosGenerated.WithLabelValues("error").Inc()
		return nil, 0, fmt.Errorf("ffmpeg: %w: %s", err, tail(string(out), 400))
	}

	video, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, 0, err
	}

	duration, err := a.probeDuration(ctx, outputPath)
	if err != nil {
		a.log.LogError(err, "Failed to probe video duration")
		duration = style.SecondsPerPanel * float64(len(images))
	}

	metrics.VideosGenerated.WithLabelValues("ok").Inc()
	return video, duration, nil
}

// buildFFmpegArgs constructs the full ffmpeg invocation.
func buildFFmpegArgs(imagePaths []string, audioPath, outputPath string, style StyleConfig) []string {
	var args []string

	dur := strconv.FormatFloat(style.SecondsPerPanel, 'f', -1, 64)
	for _, p := range imagePaths {
		args = append(args, "-loop", "1", "-t", dur, "-i", p)
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath)
	}

	filters := BuildFilters(len(imagePaths), style)
	args = append(args, "-filter_complex", strings.Join(filters, ";"))

	args = append(args,
		"-map", "[v]",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
	)
	if audioPath != "" {
		args = append(args,
			"-map", fmt.Sprintf("%d:a", len(imagePaths)),
			"-c:a", "aac",
			"-b:a", "192k",
			"-shortest",
		)
	}

	args = append(args, "-y", outputPath)
	return args
}

// probeDuration reads the container duration with ffprobe.
func (a *Assembler) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, a.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
