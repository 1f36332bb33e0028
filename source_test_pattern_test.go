package screenrec

import (
	"context"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

func TestNewTestPatternSource_Defaults(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{})

	cfg := source.Config()
	if cfg.Width != 1280 {
		t.Errorf("Default width = %d, want 1280", cfg.Width)
	}
	if cfg.Height != 720 {
		t.Errorf("Default height = %d, want 720", cfg.Height)
	}
	if cfg.FPS != 30 {
		t.Errorf("Default FPS = %d, want 30", cfg.FPS)
	}
	if cfg.Format != PixelFormatI420 {
		t.Errorf("Default format = %v, want I420", cfg.Format)
	}
	if cfg.Kind != CaptureKindScreen {
		t.Errorf("Kind = %v, want Screen", cfg.Kind)
	}
}

func TestNewTestPatternSource_CustomConfig(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{
		Width:   640,
		Height:  480,
		FPS:     60,
		Pattern: PatternGradient,
		Kind:    CaptureKindCamera,
	})

	cfg := source.Config()
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("Custom dimensions not applied: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS != 60 {
		t.Errorf("Custom FPS not applied: %d", cfg.FPS)
	}
	if cfg.Kind != CaptureKindCamera {
		t.Errorf("Kind = %v, want Camera", cfg.Kind)
	}
}

func TestTestPatternSource_StartStop(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{Width: 320, Height: 240})
	ctx := context.Background()

	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := source.Start(ctx); err == nil {
		t.Error("Double start should fail")
	}
	if err := source.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := source.Stop(); err != nil {
		t.Errorf("Double stop should not fail: %v", err)
	}
}

func TestTestPatternSource_Callback(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	source := NewTestPatternSource(TestPatternConfig{
		Width:  320,
		Height: 240,
		FPS:    10,
		Clock:  clk,
	})

	frames := make(chan *VideoFrame, 4)
	source.SetCallback(func(frame *VideoFrame) {
		frames <- frame.Clone()
	})

	if err := source.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer source.Stop()

	waitForTicker(t, clk)
	clk.Step(100 * time.Millisecond)

	select {
	case frame := <-frames:
		if frame.Width != 320 || frame.Height != 240 {
			t.Errorf("Frame dimensions: %dx%d, want 320x240", frame.Width, frame.Height)
		}
		if frame.Format != PixelFormatI420 || len(frame.Data) != 3 {
			t.Errorf("Frame format %v with %d planes", frame.Format, len(frame.Data))
		}
		if len(frame.Data[0]) != 320*240 || len(frame.Data[1]) != 160*120 {
			t.Errorf("plane sizes %d/%d", len(frame.Data[0]), len(frame.Data[1]))
		}
		if frame.Timestamp != (100 * time.Millisecond).Nanoseconds() {
			t.Errorf("Timestamp = %d, want 100ms", frame.Timestamp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestTestPatternSource_ContextCancellation(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{Width: 64, Height: 64})
	ctx, cancel := context.WithCancel(context.Background())
	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	select {
	case <-source.doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("generate loop did not exit after cancel")
	}
	if err := source.Stop(); err != nil {
		t.Errorf("Stop after cancel: %v", err)
	}
}

func TestTestPatternSource_AllPatterns(t *testing.T) {
	patterns := []PatternType{
		PatternColorBars,
		PatternGradient,
		PatternCheckerboard,
		PatternSolidColor,
		PatternMovingBox,
	}

	for _, p := range patterns {
		t.Run(p.String(), func(t *testing.T) {
			source := NewTestPatternSource(TestPatternConfig{
				Width:   64,
				Height:  48,
				Pattern: p,
				SolidR:  255,
			})
			if len(source.yPlane) != 64*48 {
				t.Fatalf("Y plane size %d", len(source.yPlane))
			}
			for i := 1; i < 5; i++ {
				source.generatePattern(uint64(i))
			}
		})
	}
}

func TestTestPatternSource_SolidColor(t *testing.T) {
	source := NewTestPatternSource(TestPatternConfig{
		Width:   16,
		Height:  16,
		Pattern: PatternSolidColor,
		SolidR:  0, SolidG: 0, SolidB: 0,
	})
	for i, v := range source.yPlane {
		if v != 16 {
			t.Fatalf("Y[%d] = %d, want 16 (black)", i, v)
		}
	}
}

func TestRGBToYUV(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		y       uint8
	}{
		{"black", 0, 0, 0, 16},
		{"white", 255, 255, 255, 235},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, u, v := rgbToYUV(tt.r, tt.g, tt.b)
			if y != tt.y {
				t.Errorf("Y = %d, want %d", y, tt.y)
			}
			if u != 128 || v != 128 {
				t.Errorf("UV = %d,%d, want 128,128 for grey", u, v)
			}
		})
	}
}

func BenchmarkTestPatternSource_ColorBars(b *testing.B) {
	source := NewTestPatternSource(TestPatternConfig{Width: 1280, Height: 720})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		source.generateColorBars()
	}
}

func BenchmarkTestPatternSource_MovingBox(b *testing.B) {
	source := NewTestPatternSource(TestPatternConfig{Width: 1280, Height: 720, Pattern: PatternMovingBox})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		source.generateMovingBox(uint64(i))
	}
}

// waitForTicker blocks until something is waiting on clk, so a Step is not
// lost before the generate loop has created its ticker.
func waitForTicker(t *testing.T, clk *clocktesting.FakeClock) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !clk.HasWaiters() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for ticker")
		}
		time.Sleep(time.Millisecond)
	}
}
