package encode

import "os/exec"

// Profile describes one negotiated output container and codec pairing.
type Profile struct {
	Name       string
	Container  string // file extension without the dot
	MimeType   string
	VideoCodec string
	AudioCodec string
	HasAudio   bool
}

// The two profiles the pipeline knows how to drive, in preference order.
// H.264 with AAC audio in MP4 needs a working ffmpeg on the host; the MJPEG
// AVI fallback is pure Go and always available, at the cost of silent video.
var (
	ProfileH264AAC = Profile{
		Name:       "h264-aac",
		Container:  "mp4",
		MimeType:   "video/mp4",
		VideoCodec: "libx264",
		AudioCodec: "aac",
		HasAudio:   true,
	}
	ProfileMJPEG = Profile{
		Name:       "mjpeg",
		Container:  "avi",
		MimeType:   "video/x-msvideo",
		VideoCodec: "mjpeg",
		HasAudio:   false,
	}
)

// CapabilityProbe reports which encoding profiles the host supports.
type CapabilityProbe interface {
	Supports(p Profile) bool
}

// Negotiate walks the profiles in preference order and returns the first one
// the probe accepts. The chosen profile is fixed for the whole export; there
// is no mid-export renegotiation.
func Negotiate(probe CapabilityProbe) (Profile, error) {
	for _, p := range []Profile{ProfileH264AAC, ProfileMJPEG} {
		if probe.Supports(p) {
			return p, nil
		}
	}
	return Profile{}, &CapabilityUnavailableError{Feature: "video encoding"}
}

// FFmpegProbe answers capability questions by looking for the ffmpeg binary.
type FFmpegProbe struct {
	FFmpegPath string // defaults to "ffmpeg" on PATH
}

func (f FFmpegProbe) Supports(p Profile) bool {
	switch p.Name {
	case ProfileH264AAC.Name:
		path := f.FFmpegPath
		if path == "" {
			path = "ffmpeg"
		}
		_, err := exec.LookPath(path)
		return err == nil
	case ProfileMJPEG.Name:
		return true
	}
	return false
}
