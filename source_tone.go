package screenrec

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"
)

// AudioPatternType defines the type of audio test pattern.
type AudioPatternType int

const (
	AudioPatternSilence    AudioPatternType = iota // Silence
	AudioPatternSineWave                           // Sine wave tone
	AudioPatternSquareWave                         // Square wave tone
)

func (p AudioPatternType) String() string {
	switch p {
	case AudioPatternSilence:
		return "Silence"
	case AudioPatternSineWave:
		return "SineWave"
	case AudioPatternSquareWave:
		return "SquareWave"
	default:
		return "Unknown"
	}
}

// ToneConfig configures a ToneSource.
type ToneConfig struct {
	SampleRate int              // Sample rate (default: 48000)
	Channels   int              // Number of channels (default: 2)
	FrameSize  int              // Samples per frame (default: 960 = 20ms at 48kHz)
	Pattern    AudioPatternType // Pattern type
	Frequency  float64          // Tone frequency in Hz (default: 440)
	Amplitude  float64          // Amplitude 0.0-1.0 (default: 0.5)

	// Clock drives frame timing. Defaults to the real clock.
	Clock clock.WithTicker
}

// DefaultToneConfig returns a 440 Hz stereo sine configuration.
func DefaultToneConfig() ToneConfig {
	return ToneConfig{
		SampleRate: 48000,
		Channels:   2,
		FrameSize:  960,
		Pattern:    AudioPatternSineWave,
		Frequency:  440.0, // A4
		Amplitude:  0.5,
	}
}

// ToneSource generates synthetic S16 audio. It stands in for a microphone in
// the virtual device provider.
type ToneSource struct {
	config     ToneConfig
	sampleData []byte
	phase      float64

	running  atomic.Bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
	callback AudioSamplesCallback

	mu sync.RWMutex
}

// NewToneSource creates a new tone source.
func NewToneSource(config ToneConfig) *ToneSource {
	if config.SampleRate <= 0 {
		config.SampleRate = 48000
	}
	if config.Channels <= 0 {
		config.Channels = 2
	}
	if config.FrameSize <= 0 {
		config.FrameSize = config.SampleRate / 50
	}
	if config.Frequency <= 0 {
		config.Frequency = 440.0
	}
	if config.Amplitude <= 0 {
		config.Amplitude = 0.5
	}
	config.Amplitude = math.Min(config.Amplitude, 1.0)
	if config.Clock == nil {
		config.Clock = clock.RealClock{}
	}

	return &ToneSource{
		config:     config,
		sampleData: make([]byte, config.FrameSize*config.Channels*2),
	}
}

// Start begins generating audio samples.
func (s *ToneSource) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("source already running")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.doneCh = make(chan struct{})
	s.phase = 0

	go s.generateLoop(ctx)
	return nil
}

// Stop stops generating audio samples and waits for the loop to exit.
func (s *ToneSource) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	<-s.doneCh
	return nil
}

// SetCallback sets the push-mode callback.
func (s *ToneSource) SetCallback(cb AudioSamplesCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

func (s *ToneSource) SampleRate() int { return s.config.SampleRate }
func (s *ToneSource) Channels() int   { return s.config.Channels }

func (s *ToneSource) generateLoop(ctx context.Context) {
	defer close(s.doneCh)

	frameDuration := time.Duration(s.config.FrameSize) * time.Second / time.Duration(s.config.SampleRate)
	start := s.config.Clock.Now()
	ticker := s.config.Clock.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.generateSamples()

			samples := &AudioSamples{
				Data:        s.sampleData,
				SampleRate:  s.config.SampleRate,
				Channels:    s.config.Channels,
				SampleCount: s.config.FrameSize,
				Format:      AudioFormatS16,
				Timestamp:   s.config.Clock.Since(start).Nanoseconds(),
			}

			s.mu.RLock()
			cb := s.callback
			s.mu.RUnlock()
			if cb != nil {
				cb(samples)
			}
		}
	}
}

func (s *ToneSource) generateSamples() {
	if s.config.Pattern == AudioPatternSilence {
		clear(s.sampleData)
		return
	}

	phaseIncrement := 2.0 * math.Pi * s.config.Frequency / float64(s.config.SampleRate)
	amplitude := s.config.Amplitude * math.MaxInt16

	idx := 0
	for i := 0; i < s.config.FrameSize; i++ {
		v := math.Sin(s.phase)
		if s.config.Pattern == AudioPatternSquareWave {
			v = math.Copysign(1, v)
		}
		sample := int16(amplitude * v)

		s.phase += phaseIncrement
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}

		for c := 0; c < s.config.Channels; c++ {
			binary.LittleEndian.PutUint16(s.sampleData[idx:], uint16(sample))
			idx += 2
		}
	}
}
