package screenrec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
)

const mp4MimeType = "video/mp4"

// FMP4Transcoder remuxes recordings into fragmented MP4 without re-encoding.
// Codecs that MP4 cannot carry (VP8) fail with ErrTranscode.
type FMP4Transcoder struct {
	Logger *slog.Logger
}

// NewFMP4Transcoder creates a remuxing transcoder.
func NewFMP4Transcoder(logger *slog.Logger) *FMP4Transcoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FMP4Transcoder{Logger: logger.With("component", "fmp4_transcoder")}
}

type mkvFile struct {
	Header  webm.EBMLHeader `ebml:"EBML"`
	Segment webm.Segment    `ebml:"Segment"`
}

type remuxTrack struct {
	id        int
	number    uint64
	timeScale uint32
	codec     mp4.Codec
	keyframes bool // false when every sample is a sync sample
	fallback  uint32
}

type remuxSample struct {
	ts       int64 // milliseconds
	keyframe bool
	data     []byte
}

func (t *FMP4Transcoder) Transcode(ctx context.Context, in []byte, mimeType string, onProgress func(int)) ([]byte, string, error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := newProgressReporter(onProgress)

	format, err := ParseMimeType(mimeType)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	if format.Video == VideoCodecVP8 {
		return nil, "", fmt.Errorf("%w: %s cannot be stored in mp4 without re-encoding", ErrTranscode, format.Video)
	}

	var file mkvFile
	if err := ebml.Unmarshal(bytes.NewReader(in), &file); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", fmt.Errorf("%w: parse %s: %v", ErrTranscode, format.Container, err)
	}
	progress.Update(5)

	scale := file.Segment.Info.TimecodeScale
	if scale == 0 {
		scale = 1000000
	}

	tracks, err := remuxTracks(file.Segment.Tracks.TrackEntry, format)
	if err != nil {
		return nil, "", err
	}

	initSeg := &fmp4.Init{}
	byNumber := make(map[uint64]*remuxTrack, len(tracks))
	for _, tr := range tracks {
		initSeg.Tracks = append(initSeg.Tracks, &fmp4.InitTrack{
			ID:        tr.id,
			TimeScale: tr.timeScale,
			Codec:     tr.codec,
		})
		byNumber[tr.number] = tr
	}

	var initBuf seekablebuffer.Buffer
	if err := initSeg.Marshal(&initBuf); err != nil {
		return nil, "", fmt.Errorf("%w: marshal init: %v", ErrTranscode, err)
	}
	var out bytes.Buffer
	out.Write(initBuf.Bytes())

	clusters := file.Segment.Cluster
	seq := uint32(1)
	for i, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrTranscode, err)
		}

		samples := make(map[uint64][]remuxSample)
		for _, block := range cluster.SimpleBlock {
			if _, ok := byNumber[block.TrackNumber]; !ok {
				continue
			}
			ts := (int64(cluster.Timecode) + int64(block.Timecode)) * int64(scale) / 1000000
			for _, data := range block.Data {
				samples[block.TrackNumber] = append(samples[block.TrackNumber], remuxSample{
					ts:       ts,
					keyframe: block.Keyframe,
					data:     data,
				})
			}
		}

		var next map[uint64]int64
		if i+1 < len(clusters) {
			next = firstTimestamps(clusters[i+1], scale)
		}

		part := &fmp4.Part{SequenceNumber: seq}
		for _, tr := range tracks {
			ss := samples[tr.number]
			if len(ss) == 0 {
				continue
			}
			nextTS, ok := next[tr.number]
			if !ok {
				nextTS = -1
			}
			part.Tracks = append(part.Tracks, tr.partTrack(ss, nextTS))
		}
		if len(part.Tracks) == 0 {
			continue
		}

		var buf seekablebuffer.Buffer
		if err := part.Marshal(&buf); err != nil {
			return nil, "", fmt.Errorf("%w: marshal fragment %d: %v", ErrTranscode, seq, err)
		}
		out.Write(buf.Bytes())
		seq++

		progress.Update(5 + fraction(int64(i+1), int64(len(clusters)))*94/100)
	}

	logger.Info("remuxed to fmp4",
		"input_bytes", len(in),
		"output_bytes", out.Len(),
		"fragments", seq-1)
	return out.Bytes(), mp4MimeType, nil
}

func remuxTracks(entries []webm.TrackEntry, format RecordingFormat) ([]*remuxTrack, error) {
	var tracks []*remuxTrack
	for _, e := range entries {
		tr := &remuxTrack{id: len(tracks) + 1, number: e.TrackNumber}
		switch {
		case e.TrackType == 1 && e.CodecID == VideoCodecMJPEG.MatroskaCodecID() && e.Video != nil:
			tr.timeScale = 90000
			tr.codec = &mp4.CodecMJPEG{Width: int(e.Video.PixelWidth), Height: int(e.Video.PixelHeight)}
		case e.TrackType == 2 && e.CodecID == AudioCodecOpus.MatroskaCodecID() && e.Audio != nil:
			tr.timeScale = 48000
			tr.codec = &mp4.CodecOpus{ChannelCount: int(e.Audio.Channels)}
		case e.TrackType == 2 && e.CodecID == AudioCodecPCM.MatroskaCodecID() && e.Audio != nil:
			tr.timeScale = uint32(e.Audio.SamplingFrequency)
			tr.codec = &mp4.CodecLPCM{
				LittleEndian: true,
				BitDepth:     16,
				SampleRate:   int(e.Audio.SamplingFrequency),
				ChannelCount: int(e.Audio.Channels),
			}
		default:
			return nil, fmt.Errorf("%w: unsupported track %d (%s) in %s", ErrTranscode, e.TrackNumber, e.CodecID, format)
		}
		tr.keyframes = e.TrackType == 1
		tr.fallback = uint32(uint64(tr.timeScale) * e.DefaultDuration / 1000000000)
		if tr.fallback == 0 {
			tr.fallback = tr.timeScale / 50
		}
		tracks = append(tracks, tr)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks", ErrTranscode)
	}
	return tracks, nil
}

// partTrack converts samples to a fragment track. Sample durations come from
// the following timestamp; the last one uses next (or the default duration
// when next is negative).
func (tr *remuxTrack) partTrack(ss []remuxSample, next int64) *fmp4.PartTrack {
	pt := &fmp4.PartTrack{
		ID:       tr.id,
		BaseTime: uint64(tr.toScale(ss[0].ts)),
	}
	for i, s := range ss {
		var dur uint32
		switch {
		case i+1 < len(ss):
			dur = uint32(tr.toScale(ss[i+1].ts) - tr.toScale(s.ts))
		case next >= 0 && next > s.ts:
			dur = uint32(tr.toScale(next) - tr.toScale(s.ts))
		default:
			dur = tr.fallback
		}
		pt.Samples = append(pt.Samples, &fmp4.Sample{
			Duration:        dur,
			IsNonSyncSample: tr.keyframes && !s.keyframe,
			Payload:         s.data,
		})
	}
	return pt
}

func (tr *remuxTrack) toScale(ms int64) int64 {
	return ms * int64(tr.timeScale) / 1000
}

// firstTimestamps returns the first block timestamp of every track in c.
func firstTimestamps(c webm.Cluster, scale uint64) map[uint64]int64 {
	out := make(map[uint64]int64)
	for _, block := range c.SimpleBlock {
		if _, ok := out[block.TrackNumber]; ok {
			continue
		}
		out[block.TrackNumber] = (int64(c.Timecode) + int64(block.Timecode)) * int64(scale) / 1000000
	}
	return out
}
