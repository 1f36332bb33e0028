package screenrec

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
)

// FFmpegTranscoder converts recordings to MP4 with an external ffmpeg
// binary, copying the video stream.
type FFmpegTranscoder struct {
	Path   string // ffmpeg binary, looked up in PATH when empty
	Args   []string
	Logger *slog.Logger
}

// DefaultFFmpegArgs are the output options used when Args is empty.
var DefaultFFmpegArgs = []string{"-vcodec", "copy"}

// NewFFmpegTranscoder creates a transcoder running ffmpeg from PATH.
func NewFFmpegTranscoder(logger *slog.Logger) *FFmpegTranscoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegTranscoder{Logger: logger.With("component", "ffmpeg_transcoder")}
}

// CheckFFmpeg reports whether the ffmpeg binary can be found.
func (t *FFmpegTranscoder) CheckFFmpeg() error {
	if _, err := exec.LookPath(t.binary()); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

func (t *FFmpegTranscoder) binary() string {
	if t.Path != "" {
		return t.Path
	}
	return "ffmpeg"
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, in []byte, mimeType string, onProgress func(int)) ([]byte, string, error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := newProgressReporter(onProgress)

	dir, err := os.MkdirTemp("", "screenrec-ffmpeg-")
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "recording."+extensionFor(mimeType))
	outPath := filepath.Join(dir, "output.mp4")
	if err := os.WriteFile(inPath, in, 0o600); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrTranscode, err)
	}

	outArgs := t.Args
	if len(outArgs) == 0 {
		outArgs = DefaultFFmpegArgs
	}
	args := []string{"-hide_banner", "-nostats", "-progress", "pipe:1", "-y", "-i", inPath}
	args = append(args, outArgs...)
	args = append(args, outPath)

	cmd := exec.CommandContext(ctx, t.binary(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrTranscode, err)
	}

	total := recordingDuration(in)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, "", fmt.Errorf("%w: start ffmpeg: %v", ErrTranscode, err)
	}
	parseFFmpegProgress(stdout, total, progress.Update)

	if err := cmd.Wait(); err != nil {
		return nil, "", fmt.Errorf("%w: ffmpeg: %v\n%s", ErrTranscode, err, lastLines(stderr.String(), 10))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	logger.Info("ffmpeg transcode finished",
		"input_bytes", len(in),
		"output_bytes", len(out),
		"elapsed", time.Since(start))
	return out, mp4MimeType, nil
}

// parseFFmpegProgress reads "-progress" key=value lines and reports
// out_time_us against total.
func parseFFmpegProgress(r io.Reader, total time.Duration, report func(int)) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms": // both are microseconds
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || total <= 0 {
				continue
			}
			report(fraction(us, total.Microseconds()))
		case "progress":
			if value == "end" {
				report(100)
			}
		}
	}
}

// recordingDuration returns the timestamp of the last block in a WebM or
// Matroska recording, or 0 if it cannot be parsed.
func recordingDuration(data []byte) time.Duration {
	var file struct {
		Segment webm.Segment `ebml:"Segment"`
	}
	if err := ebml.Unmarshal(bytes.NewReader(data), &file); err != nil && len(file.Segment.Cluster) == 0 {
		return 0
	}
	scale := file.Segment.Info.TimecodeScale
	if scale == 0 {
		scale = 1000000
	}
	var last int64
	for _, c := range file.Segment.Cluster {
		for _, b := range c.SimpleBlock {
			last = max(last, int64(c.Timecode)+int64(b.Timecode))
		}
	}
	return time.Duration(last * int64(scale))
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
