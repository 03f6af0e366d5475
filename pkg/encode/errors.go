package encode

import "fmt"

// CapabilityUnavailableError reports that the host cannot drive a required
// encoder. Callers surface it before any work starts; it is never raised
// mid-export.
type CapabilityUnavailableError struct {
	Feature string
}

func (e *CapabilityUnavailableError) Error() string {
	return fmt.Sprintf("%s is not available on this host", e.Feature)
}

// EncodeError wraps a failure inside the capture pipeline: an encoder that
// refused a frame, died mid-stream, or failed to finalize its container.
type EncodeError struct {
	Stage string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Stage, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// TranscodeError wraps a failed cover transcode. The message is deliberately
// generic and safe to show to users; the cause stays reachable via Unwrap for
// logs.
type TranscodeError struct {
	Err error
}

func (e *TranscodeError) Error() string {
	return "video conversion failed, please try again"
}

func (e *TranscodeError) Unwrap() error { return e.Err }
