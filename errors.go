package screenrec

import (
	"errors"
)

// Session errors. Providers and collaborators wrap these with fmt.Errorf so
// callers can match them with errors.Is.
var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrUserCancelled     = errors.New("user cancelled the capture prompt")
	ErrUnsupportedFormat = errors.New("unsupported recording format")
	ErrTranscode         = errors.New("transcode failed")
	ErrInvalidState      = errors.New("invalid state for operation")
	ErrBusy              = errors.New("another start is in progress")
	ErrNotSupported      = errors.New("operation not supported")
	ErrTrackEnded        = errors.New("track ended")
)

// ErrorKind is the user-facing category of an error. Each kind maps to its
// own notification in the presentation layer.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindPermission
	ErrorKindDeviceNotFound
	ErrorKindCancelled
	ErrorKindUnsupportedFormat
	ErrorKindTranscode
	ErrorKindInvalidState
	ErrorKindRecording // Fatal mid-recording failure
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindPermission:
		return "permission"
	case ErrorKindDeviceNotFound:
		return "device_not_found"
	case ErrorKindCancelled:
		return "cancelled"
	case ErrorKindUnsupportedFormat:
		return "unsupported_format"
	case ErrorKindTranscode:
		return "transcode"
	case ErrorKindInvalidState:
		return "invalid_state"
	case ErrorKindRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// ClassifyError maps err onto an ErrorKind. Unrecognized errors are treated
// as fatal recording failures.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrPermissionDenied):
		return ErrorKindPermission
	case errors.Is(err, ErrDeviceNotFound):
		return ErrorKindDeviceNotFound
	case errors.Is(err, ErrUserCancelled):
		return ErrorKindCancelled
	case errors.Is(err, ErrUnsupportedFormat):
		return ErrorKindUnsupportedFormat
	case errors.Is(err, ErrTranscode):
		return ErrorKindTranscode
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrBusy):
		return ErrorKindInvalidState
	default:
		return ErrorKindRecording
	}
}
