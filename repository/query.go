package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Field is a whitelisted catalog_records column. Predicates and sort keys only
// accept these, so caller input never reaches the SQL text.
type Field string

const (
	FieldID          Field = "id"
	FieldTitle       Field = "title"
	FieldArtist      Field = "artist"
	FieldAlbum       Field = "album"
	FieldAlbumArtist Field = "album_artist"
	FieldGenre       Field = "genre"
	FieldYear        Field = "year"
	FieldTrackNumber Field = "track_number"
	FieldDiscNumber  Field = "disc_number"
	FieldComposers   Field = "composers"
	FieldComment     Field = "comment"
	FieldMood        Field = "mood"
	FieldKey         Field = "music_key"
	FieldBPM         Field = "bpm"
	FieldLyrics      Field = "lyrics"
	FieldDuration    Field = "duration"
	FieldBitrate     Field = "bitrate"
	FieldChannels    Field = "channels"
	FieldEncoding    Field = "encoding"
	FieldCoverArt    Field = "cover_art_path"
	FieldCreatedAt   Field = "created_at"
)

var knownFields = map[Field]struct{}{
	FieldID: {}, FieldTitle: {}, FieldArtist: {}, FieldAlbum: {}, FieldAlbumArtist: {},
	FieldGenre: {}, FieldYear: {}, FieldTrackNumber: {}, FieldDiscNumber: {},
	FieldComposers: {}, FieldComment: {}, FieldMood: {}, FieldKey: {}, FieldBPM: {},
	FieldLyrics: {}, FieldDuration: {}, FieldBitrate: {}, FieldChannels: {},
	FieldEncoding: {}, FieldCoverArt: {}, FieldCreatedAt: {},
}

func (f Field) column() string {
	if _, ok := knownFields[f]; !ok {
		// Only reachable through a programming error: fields are package constants.
		panic(fmt.Sprintf("repository: unknown field %q", string(f)))
	}
	return string(f)
}

// textFields are the columns covered by the ranking index.
var textFields = []Field{
	FieldTitle, FieldArtist, FieldAlbum, FieldAlbumArtist, FieldComposers, FieldComment, FieldLyrics,
}

// substringFields always back the free-text query, so partial words match
// even when the ranking primitive tokenizes on word boundaries.
var substringFields = []Field{FieldTitle, FieldArtist, FieldAlbum, FieldAlbumArtist}

// Predicate is one conjunct of a catalog query.
type Predicate interface {
	apply(tx *gorm.DB) *gorm.DB
}

// Equals matches a column exactly.
type Equals struct {
	Field Field
	Value interface{}
}

func (p Equals) apply(tx *gorm.DB) *gorm.DB {
	return tx.Where(p.Field.column()+" = ?", p.Value)
}

// Contains is a case-insensitive substring match.
type Contains struct {
	Field Field
	Value string
}

func (p Contains) apply(tx *gorm.DB) *gorm.DB {
	return tx.Where("LOWER("+p.Field.column()+") LIKE ?", likePattern(p.Value))
}

// Range matches From <= field <= To. Either bound may be nil; NULL never matches.
type Range struct {
	Field Field
	From  *float64
	To    *float64
}

func (p Range) apply(tx *gorm.DB) *gorm.DB {
	col := p.Field.column()
	if p.From != nil {
		tx = tx.Where(col+" >= ?", *p.From)
	}
	if p.To != nil {
		tx = tx.Where(col+" <= ?", *p.To)
	}
	return tx
}

// TriState requires a nullable column to be present (Want) or absent (!Want).
// NULL and the empty string are both absent.
type TriState struct {
	Field Field
	Want  bool
}

func (p TriState) apply(tx *gorm.DB) *gorm.DB {
	col := p.Field.column()
	if p.Want {
		return tx.Where("(" + col + " IS NOT NULL AND " + col + " <> '')")
	}
	return tx.Where("(" + col + " IS NULL OR " + col + " = '')")
}

// AnyContains matches when any of Values is a case-insensitive substring of
// the column. Used for the composers list stored as JSON text.
type AnyContains struct {
	Field  Field
	Values []string
}

func (p AnyContains) apply(tx *gorm.DB) *gorm.DB {
	col := p.Field.column()
	parts := make([]string, 0, len(p.Values))
	args := make([]interface{}, 0, len(p.Values))
	for _, v := range p.Values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		parts = append(parts, "LOWER("+col+") LIKE ?")
		args = append(args, likePattern(v))
	}
	if len(parts) == 0 {
		return tx
	}
	return tx.Where("("+strings.Join(parts, " OR ")+")", args...)
}

// Sort orders results by a column; id breaks ties in the same direction.
type Sort struct {
	Field Field
	Desc  bool
}

// Query is a conjunctive, owner-scoped catalog search.
type Query struct {
	OwnerID    int64
	Predicates []Predicate
	// Text is the trimmed free-text query, empty when absent.
	Text string
	// Relevance orders by text score (then newest first) when Text is set.
	Relevance bool
	Sort      Sort
	Offset    int
	Limit     int
}

// likePattern lowercases s, escapes LIKE wildcards and wraps it in %...%.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}

func matchExpr() string {
	cols := make([]string, len(textFields))
	for i, f := range textFields {
		cols[i] = f.column()
	}
	return "MATCH(" + strings.Join(cols, ", ") + ") AGAINST (? IN NATURAL LANGUAGE MODE)"
}

// textCondition builds the free-text OR group. With fullText the ranking
// primitive is OR-ed with substring matches on the short fields; without it
// every text field falls back to substring matching.
func textCondition(text string, fullText bool) (string, []interface{}) {
	pattern := likePattern(text)
	var parts []string
	var args []interface{}
	fields := textFields
	if fullText {
		parts = append(parts, matchExpr())
		args = append(args, text)
		fields = substringFields
	}
	for _, f := range fields {
		parts = append(parts, "LOWER("+f.column()+") LIKE ?")
		args = append(args, pattern)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// filterScope applies the owner predicate, every filter and the text match.
func filterScope(q Query, fullText bool) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("owner_id = ?", q.OwnerID)
		for _, p := range q.Predicates {
			tx = p.apply(tx)
		}
		if q.Text != "" {
			cond, args := textCondition(q.Text, fullText)
			tx = tx.Where(cond, args...)
		}
		return tx
	}
}

// orderScope applies ordering. Ranked ordering is only possible with the
// FULLTEXT index; otherwise relevance means newest first.
func orderScope(q Query, fullText bool) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if q.Relevance {
			if q.Text != "" && fullText {
				return tx.Order(clause.OrderBy{Expression: clause.Expr{
					SQL:                matchExpr() + " DESC, created_at DESC, id DESC",
					Vars:               []interface{}{q.Text},
					WithoutParentheses: true,
				}})
			}
			return tx.Order("created_at DESC").Order("id DESC")
		}
		field := q.Sort.Field
		if field == "" {
			field = FieldCreatedAt
		}
		dir := " ASC"
		if q.Sort.Desc {
			dir = " DESC"
		}
		tx = tx.Order(field.column() + dir)
		if field != FieldID {
			tx = tx.Order("id" + dir)
		}
		return tx
	}
}
