// Package screenrec records a screen capture, optionally composited with a
// webcam overlay and microphone audio, into an in-memory video artifact.
//
// Key pieces include:
//   - MediaDevices/DeviceProvider for device enumeration and getUserMedia /
//     getDisplayMedia style acquisition
//   - Compositor, which draws the screen and camera frames onto one canvas and
//     exposes it as a CanvasTrack
//   - Recorder, which encodes the composite track plus audio tracks into a
//     WebM/Matroska stream delivered as ordered chunks
//   - Controller, the session state machine tying the pieces together, plus
//     the Preview playback sink and the post-recording Transcoder contract
//
// # Architecture
//
//	Acquirer -> RawTrackSet -> Compositor -> CanvasTrack -> Recorder -> Blob
//	                       \-> audio tracks ---------------/
//	Controller: Start/PauseResume/Stop, Artifact store, Preview, Transcoder
//
// # Native Libraries
//
// VP8 and Opus encoding load libmedia_vpx and libstream_opus through purego.
// Set MEDIA_SDK_LIB_PATH (or STREAM_SDK_LIB_PATH) to the directory containing
// these libraries. Without them only the pure Go formats (MJPEG video, PCM
// audio in Matroska) are available.
//
// # Build Tags
//
// novpx and noopus drop the native codecs at build time.
package screenrec
