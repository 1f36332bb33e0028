package screenrec

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressReporter_EndsAtHundred(t *testing.T) {
	var got []int
	r := newProgressReporter(func(p int) { got = append(got, p) })

	for _, p := range []int{10, 45, 45, 99} {
		r.Update(p)
	}
	r.Complete()
	r.Update(50)

	assert.Equal(t, []int{10, 45, 99, 100}, got)
	assert.Equal(t, 100, r.Last())
}

func TestProgressReporter_Clamps(t *testing.T) {
	var got []int
	r := newProgressReporter(func(p int) { got = append(got, p) })
	r.Update(-5)
	r.Update(250)
	r.Complete()
	assert.Equal(t, []int{0, 100}, got)
}

func TestProgressReporter_NilCallback(t *testing.T) {
	r := newProgressReporter(nil)
	assert.Equal(t, -1, r.Last())
	r.Update(30)
	r.Complete()
	assert.Equal(t, 100, r.Last())
}

func TestFraction(t *testing.T) {
	assert.Equal(t, 50, fraction(5, 10))
	assert.Equal(t, 0, fraction(5, 0))
	assert.Equal(t, 33, fraction(1, 3))
}

func TestParseFFmpegProgress(t *testing.T) {
	out := strings.Join([]string{
		"frame=10",
		"out_time_us=1000000",
		"progress=continue",
		"out_time_ms=3000000",
		"garbage",
		"out_time_us=notanumber",
		"progress=end",
	}, "\n")

	var got []int
	parseFFmpegProgress(strings.NewReader(out), 4*time.Second, func(p int) { got = append(got, p) })
	assert.Equal(t, []int{25, 75, 100}, got)
}

func TestParseFFmpegProgress_UnknownDuration(t *testing.T) {
	var got []int
	parseFFmpegProgress(strings.NewReader("out_time_us=500\nprogress=end\n"), 0, func(p int) { got = append(got, p) })
	assert.Equal(t, []int{100}, got)
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "c\nd", lastLines("a\nb\nc\nd\n", 2))
	assert.Equal(t, "a", lastLines("a", 5))
}

func TestFFmpegTranscoder_MissingBinary(t *testing.T) {
	tr := NewFFmpegTranscoder(nil)
	tr.Path = "/nonexistent/ffmpeg-binary"
	assert.Error(t, tr.CheckFFmpeg())

	_, _, err := tr.Transcode(context.Background(), []byte("x"), "video/webm", nil)
	assert.ErrorIs(t, err, ErrTranscode)
}
