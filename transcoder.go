package screenrec

import (
	"context"
	"sync"
)

// Transcoder converts a finished recording into a more portable container.
// onProgress receives best-effort percentages in [0,100]; it may never see
// 100 even on success.
type Transcoder interface {
	Transcode(ctx context.Context, in []byte, mimeType string, onProgress func(percent int)) (out []byte, outMimeType string, err error)
}

// TranscoderFunc adapts a function to Transcoder.
type TranscoderFunc func(ctx context.Context, in []byte, mimeType string, onProgress func(percent int)) ([]byte, string, error)

func (f TranscoderFunc) Transcode(ctx context.Context, in []byte, mimeType string, onProgress func(int)) ([]byte, string, error) {
	return f(ctx, in, mimeType, onProgress)
}

// progressReporter clamps transcoder progress to [0,100], drops repeated
// values and forces a terminal 100 on success.
type progressReporter struct {
	report func(percent int)

	mu   sync.Mutex
	last int
	done bool
}

func newProgressReporter(report func(int)) *progressReporter {
	return &progressReporter{report: report, last: -1}
}

// Update reports p. Values after Complete are ignored.
func (r *progressReporter) Update(p int) {
	p = min(max(p, 0), 100)
	r.mu.Lock()
	if r.done || p == r.last {
		r.mu.Unlock()
		return
	}
	r.last = p
	r.mu.Unlock()
	if r.report != nil {
		r.report(p)
	}
}

// Complete reports 100 unless it was the last value reported.
func (r *progressReporter) Complete() {
	r.Update(100)
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
}

// Last returns the last reported value, or -1.
func (r *progressReporter) Last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// fraction converts done/total to a whole percentage.
func fraction(done, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(done * 100 / total)
}
