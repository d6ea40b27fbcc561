package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Probe is what ffprobe reports about a media file.
type Probe struct {
	Duration float64 // seconds
	Codec    string
	// Tags holds container tags with lower-cased keys.
	Tags map[string]string
}

// Seconds returns the duration rounded to the nearest second.
func (p *Probe) Seconds() int {
	return int(math.Round(p.Duration))
}

// Tag returns the tag value for a case-insensitive key.
func (p *Probe) Tag(key string) (string, bool) {
	v, ok := p.Tags[strings.ToLower(key)]
	return v, ok
}

// Prober runs ffprobe.
type Prober struct {
	ffprobePath string
}

func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath}
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Streams []struct {
		CodecName string            `json:"codec_name"`
		Tags      map[string]string `json:"tags"`
	} `json:"streams"`
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

// Probe reads the duration, codec and tags of the first audio stream of path.
func (p *Prober) Probe(ctx context.Context, path string) (*Probe, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "format=duration:format_tags:stream=codec_name:stream_tags",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe execution failed for %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	return parseProbe(out.Bytes())
}

// Duration returns the duration of path in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	probe, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return probe.Duration, nil
}

func parseProbe(data []byte) (*Probe, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}

	probe := &Probe{Tags: make(map[string]string)}
	if raw.Format.Duration != "" {
		d, err := strconv.ParseFloat(raw.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse duration %q: %w", raw.Format.Duration, err)
		}
		probe.Duration = d
	}

	// stream tags first, container tags win
	if len(raw.Streams) > 0 {
		probe.Codec = raw.Streams[0].CodecName
		for k, v := range raw.Streams[0].Tags {
			probe.Tags[strings.ToLower(k)] = v
		}
	}
	for k, v := range raw.Format.Tags {
		probe.Tags[strings.ToLower(k)] = v
	}
	return probe, nil
}
