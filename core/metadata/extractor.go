// Package metadata reads tags, audio properties and embedded artwork from
// uploaded files. Decode problems never fail an extraction: the caller gets
// a fallback result with a title derived from the filename.
package metadata

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tunevault/core/apperr"
	"tunevault/core/audio"
	"tunevault/logger"

	"github.com/dhowden/tag"
)

// Artwork is an embedded cover image.
type Artwork struct {
	Data     []byte
	MIMEType string
	Ext      string // with leading dot
}

// Result is a best-effort view of a file's metadata. Empty strings and nil
// pointers mean the value was not present in the file.
type Result struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist *string
	Genre       *string
	Year        *int
	TrackNumber *int
	TrackTotal  *int
	DiscNumber  *int
	DiscTotal   *int
	Composers   []string
	Comment     *string
	Mood        *string
	Key         *string
	BPM         *int
	ISRC        *string
	Lyrics      *string

	// Duration is nil when the length could not be determined.
	Duration   *float64
	Bitrate    *int
	SampleRate *int
	Channels   *int
	Encoding   *string
	Format     string

	Artwork *Artwork

	// FallbackTitle is always derived from the filename.
	FallbackTitle string
	// Fallback is set when the tag decoder could not read the file.
	Fallback bool
}

// Extractor reads metadata from a local file.
type Extractor interface {
	Extract(ctx context.Context, path, originalFilename string) (*Result, error)
}

// TagExtractor combines github.com/dhowden/tag with an audio prober.
type TagExtractor struct {
	prober audio.Prober
}

// NewTagExtractor creates an extractor. prober may be nil, in which case
// audio properties are left unknown.
func NewTagExtractor(prober audio.Prober) *TagExtractor {
	return &TagExtractor{prober: prober}
}

// Extract fails only when the file is missing or empty.
func (e *TagExtractor) Extract(ctx context.Context, path, originalFilename string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrEmptyUpload, err)
	}
	if info.Size() == 0 {
		return nil, apperr.ErrEmptyUpload
	}

	name := originalFilename
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(path)
	}
	res := &Result{FallbackTitle: TitleFromFilename(name)}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrEmptyUpload, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		logger.Debug("tag decode failed, using fallback metadata",
			logger.String("file", name), logger.ErrorField(err))
		res.Fallback = true
	} else {
		fillFromTags(res, m)
	}

	if e.prober != nil {
		props, err := e.prober.Probe(ctx, path)
		if err != nil {
			logger.Debug("audio probe failed", logger.String("file", name), logger.ErrorField(err))
		} else {
			fillFromProbe(res, props)
		}
	}
	return res, nil
}

func fillFromTags(res *Result, m tag.Metadata) {
	res.Title = strings.TrimSpace(m.Title())
	res.Artist = strings.TrimSpace(m.Artist())
	res.Album = strings.TrimSpace(m.Album())
	res.AlbumArtist = optString(m.AlbumArtist())
	res.Genre = optString(m.Genre())
	res.Year = optPositive(m.Year())

	track, trackTotal := m.Track()
	res.TrackNumber, res.TrackTotal = optPositive(track), optPositive(trackTotal)
	disc, discTotal := m.Disc()
	res.DiscNumber, res.DiscTotal = optPositive(disc), optPositive(discTotal)

	res.Composers = SplitComposers(m.Composer())
	res.Comment = optString(m.Comment())
	res.Lyrics = optString(m.Lyrics())

	raw := m.Raw()
	res.BPM = rawInt(raw, "TBPM", "BPM", "bpm", "tmpo", "TMPO")
	res.Key = optString(rawString(raw, "TKEY", "TKE", "initialkey", "INITIALKEY", "key"))
	res.Mood = optString(rawString(raw, "TMOO", "mood", "MOOD"))
	res.ISRC = optString(rawString(raw, "TSRC", "TRC", "isrc", "ISRC"))

	if ft := m.FileType(); ft != tag.UnknownFileType {
		res.Format = strings.ToLower(string(ft))
	}

	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		res.Artwork = &Artwork{
			Data:     pic.Data,
			MIMEType: pic.MIMEType,
			Ext:      artworkExt(pic.Ext, pic.MIMEType),
		}
	}
}

func fillFromProbe(res *Result, props audio.Properties) {
	res.Duration = optPositiveFloat(props.Duration)
	res.Bitrate = optPositive(props.Bitrate)
	res.SampleRate = optPositive(props.SampleRate)
	res.Channels = optPositive(props.Channels)
	res.Encoding = optString(props.Codec)
	if res.Format == "" && props.Container != "" {
		res.Format = props.Container
	}
}

// SplitComposers splits a composer tag on the separators taggers use.
func SplitComposers(s string) []string {
	s = strings.NewReplacer("\x00", ";", " / ", ";").Replace(s)
	var out []string
	for _, part := range strings.Split(s, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func artworkExt(ext, mimeType string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if ext == ".jpeg" {
			ext = ".jpg"
		}
		return ext
	}
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ".jpg"
}

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optPositiveFloat(f float64) *float64 {
	if f <= 0 {
		return nil
	}
	return &f
}

func optPositive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

func rawString(raw map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(strings.Trim(t, "\x00")); s != "" {
				return s
			}
		case []byte:
			if s := strings.TrimSpace(strings.Trim(string(t), "\x00")); s != "" {
				return s
			}
		case int:
			return strconv.Itoa(t)
		case *tag.Comm:
			if s := strings.TrimSpace(t.Text); s != "" {
				return s
			}
		case fmt.Stringer:
			if s := strings.TrimSpace(t.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func rawInt(raw map[string]interface{}, keys ...string) *int {
	s := rawString(raw, keys...)
	if s == "" {
		return nil
	}
	// BPM tags are sometimes written as decimals ("120.00").
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return optPositive(int(f + 0.5))
	}
	return nil
}
