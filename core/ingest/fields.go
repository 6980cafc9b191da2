package ingest

import (
	"fmt"
	"strings"

	"tunevault/core/apperr"
	"tunevault/model"
)

// Fields are user-supplied values. nil means "not supplied".
type Fields struct {
	Title       *string  `json:"title"`
	Artist      *string  `json:"artist"`
	Album       *string  `json:"album"`
	AlbumArtist *string  `json:"albumArtist"`
	Genre       *string  `json:"genre"`
	Year        *int     `json:"year"`
	TrackNumber *int     `json:"trackNumber"`
	DiscNumber  *int     `json:"discNumber"`
	Composers   []string `json:"composers"`
	Comment     *string  `json:"comment"`
	Mood        *string  `json:"mood"`
	Key         *string  `json:"key"`
	BPM         *int     `json:"bpm"`
	ISRC        *string  `json:"isrc"`
	Lyrics      *string  `json:"lyrics"`
}

// Coalesce returns the first non-zero value, or the zero value.
// With pointers this picks the first non-nil one.
func Coalesce[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

// Validate rejects out-of-range numbers.
func (f Fields) Validate() error {
	checks := []struct {
		name string
		v    *int
		min  int
		max  int
	}{
		{"year", f.Year, 0, 9999},
		{"trackNumber", f.TrackNumber, 1, 9999},
		{"discNumber", f.DiscNumber, 1, 999},
		{"bpm", f.BPM, 0, 1000},
	}
	for _, c := range checks {
		if c.v != nil && (*c.v < c.min || *c.v > c.max) {
			return apperr.Validation(fmt.Sprintf("%s must be between %d and %d", c.name, c.min, c.max))
		}
	}
	return nil
}

// normalized trims every string and turns blanks into "not supplied".
func (f Fields) normalized() Fields {
	n := f
	for _, p := range []**string{&n.Title, &n.Artist, &n.Album, &n.AlbumArtist, &n.Genre,
		&n.Comment, &n.Mood, &n.Key, &n.ISRC, &n.Lyrics} {
		*p = blankToNil(*p)
	}
	n.Composers = cleanList(f.Composers)
	return n
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// updates maps supplied fields to column updates for a metadata edit.
// Blank optional strings clear the column; title, artist and album cannot be blanked.
func (f Fields) updates() (map[string]interface{}, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	u := make(map[string]interface{})

	required := []struct {
		col string
		v   *string
	}{{"title", f.Title}, {"artist", f.Artist}, {"album", f.Album}}
	for _, r := range required {
		if r.v == nil {
			continue
		}
		t := strings.TrimSpace(*r.v)
		if t == "" {
			return nil, apperr.Validation(r.col + " cannot be empty")
		}
		u[r.col] = t
	}

	optional := []struct {
		col string
		v   *string
	}{
		{"album_artist", f.AlbumArtist}, {"genre", f.Genre}, {"comment", f.Comment},
		{"mood", f.Mood}, {"music_key", f.Key}, {"isrc", f.ISRC}, {"lyrics", f.Lyrics},
	}
	for _, o := range optional {
		if o.v != nil {
			u[o.col] = blankToNil(o.v)
		}
	}

	ints := []struct {
		col string
		v   *int
	}{{"year", f.Year}, {"track_number", f.TrackNumber}, {"disc_number", f.DiscNumber}, {"bpm", f.BPM}}
	for _, i := range ints {
		if i.v != nil {
			u[i.col] = *i.v
		}
	}

	if f.Composers != nil {
		u["composers"] = model.StringList(cleanList(f.Composers))
	}
	return u, nil
}
