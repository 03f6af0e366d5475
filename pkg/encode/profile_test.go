package encode

import (
	"errors"
	"testing"
)

// scriptedProbe accepts exactly the named profiles.
type scriptedProbe map[string]bool

func (p scriptedProbe) Supports(profile Profile) bool { return p[profile.Name] }

func TestNegotiatePrefersH264(t *testing.T) {
	probe := scriptedProbe{ProfileH264AAC.Name: true, ProfileMJPEG.Name: true}
	got, err := Negotiate(probe)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if got.Name != ProfileH264AAC.Name {
		t.Errorf("negotiated %q, want the H.264 profile first", got.Name)
	}
	if got.Container != "mp4" || !got.HasAudio {
		t.Errorf("H.264 profile should be an MP4 with audio, got %+v", got)
	}
}

func TestNegotiateFallsBackToMJPEG(t *testing.T) {
	probe := scriptedProbe{ProfileMJPEG.Name: true}
	got, err := Negotiate(probe)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if got.Name != ProfileMJPEG.Name {
		t.Errorf("negotiated %q, want the MJPEG fallback", got.Name)
	}
	if got.HasAudio {
		t.Error("the MJPEG fallback is silent")
	}
}

func TestNegotiateNothingSupported(t *testing.T) {
	_, err := Negotiate(scriptedProbe{})
	var cap *CapabilityUnavailableError
	if !errors.As(err, &cap) {
		t.Fatalf("want CapabilityUnavailableError, got %v", err)
	}
}

func TestFFmpegProbeAlwaysOffersMJPEG(t *testing.T) {
	probe := FFmpegProbe{FFmpegPath: "/definitely/not/here/ffmpeg"}
	if !probe.Supports(ProfileMJPEG) {
		t.Error("the pure-Go MJPEG profile must always be available")
	}
	if probe.Supports(ProfileH264AAC) {
		t.Error("a missing ffmpeg binary must not pass the H.264 probe")
	}
}
