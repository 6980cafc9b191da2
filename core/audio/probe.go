package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Properties describes the audio stream of a file as reported by ffprobe.
// Zero values mean the property is unknown.
type Properties struct {
	Duration   float64 // seconds
	Bitrate    int     // bits per second
	SampleRate int
	Channels   int
	Codec      string // e.g. "mp3", "flac", "aac"
	Container  string // first entry of format_name
}

// Prober inspects audio files.
type Prober interface {
	Probe(ctx context.Context, path string) (Properties, error)
}

// FFprobe runs the ffprobe binary with JSON output.
type FFprobe struct {
	path string
}

// NewFFprobe creates a prober. An empty path resolves "ffprobe" from PATH.
func NewFFprobe(path string) *FFprobe {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobe{path: path}
}

type probeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		BitRate    string `json:"bit_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// Probe returns the properties of the first audio stream.
func (p *FFprobe) Probe(ctx context.Context, path string) (Properties, error) {
	if strings.TrimSpace(path) == "" {
		return Properties{}, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, p.path,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-select_streams", "a:0",
		"-of", "json",
		"--", path,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Properties{}, fmt.Errorf("ffprobe execution failed for %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbeOutput(out.Bytes())
}

func parseProbeOutput(data []byte) (Properties, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return Properties{}, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}

	var props Properties
	if name := probe.Format.FormatName; name != "" {
		props.Container = strings.Split(name, ",")[0]
	}
	props.Duration = nonNegative(parseFloat(probe.Format.Duration))
	props.Bitrate = int(nonNegative(parseFloat(probe.Format.BitRate)))

	for _, s := range probe.Streams {
		if s.CodecType != "" && !strings.EqualFold(s.CodecType, "audio") {
			continue
		}
		props.Codec = s.CodecName
		props.Channels = s.Channels
		props.SampleRate = int(nonNegative(parseFloat(s.SampleRate)))
		if props.Bitrate == 0 {
			props.Bitrate = int(nonNegative(parseFloat(s.BitRate)))
		}
		if props.Duration == 0 {
			props.Duration = nonNegative(parseFloat(s.Duration))
		}
		return props, nil
	}
	return props, errors.New("no audio streams found in file")
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
