package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// Prober reads audio metadata with ffprobe. It accepts local paths and
// http(s) URLs alike; ffprobe streams just enough of the file to read the
// container header.
type Prober struct {
	FFprobePath string // defaults to "ffprobe" on PATH
}

// Duration returns the audio duration in seconds.
func (p Prober) Duration(ctx context.Context, source string) (float64, error) {
	path := p.FFprobePath
	if path == "" {
		path = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		source,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", source, err)
	}
	return parseDuration(output)
}

// parseDuration extracts format.duration from ffprobe's JSON output.
func parseDuration(output []byte) (float64, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output has no duration")
	}
	d, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", probe.Format.Duration, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %v", d)
	}
	return d, nil
}
