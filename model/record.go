package model

import "time"

// 用户与文件标签都没有提供时使用的默认值
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Record 用户目录中的一条音频记录
type Record struct {
	ID               int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Filename         string `json:"filename" gorm:"size:255;not null"`
	OriginalFilename string `json:"originalFilename" gorm:"size:255;not null"`

	Title       string     `json:"title" gorm:"size:255;not null"`
	Artist      string     `json:"artist" gorm:"size:255;not null;index:idx_owner_artist,priority:2"`
	Album       string     `json:"album" gorm:"size:255;not null"`
	AlbumArtist *string    `json:"albumArtist" gorm:"size:255"`
	Genre       *string    `json:"genre" gorm:"size:100;index:idx_owner_genre,priority:2"`
	Year        *int       `json:"year"`
	TrackNumber *int       `json:"trackNumber"`
	TrackTotal  *int       `json:"trackTotal"`
	DiscNumber  *int       `json:"discNumber"`
	DiscTotal   *int       `json:"discTotal"`
	Composers   StringList `json:"composers" gorm:"type:text"` // JSON 数组文本，FULLTEXT 索引不支持 JSON 列
	Comment     *string    `json:"comment" gorm:"type:text"`
	Mood        *string    `json:"mood" gorm:"size:100"`
	Key         *string    `json:"key" gorm:"column:music_key;size:20"`
	BPM         *int       `json:"bpm" gorm:"column:bpm"`
	ISRC        *string    `json:"isrc" gorm:"column:isrc;size:20"`
	Lyrics      *string    `json:"lyrics" gorm:"type:text"`

	Duration   *float64 `json:"duration"` // 秒，未知时为 NULL
	Size       int64    `json:"size" gorm:"not null"`
	Format     string   `json:"format" gorm:"size:20;not null"`
	Bitrate    *int     `json:"bitrate"`
	SampleRate *int     `json:"sampleRate"`
	Channels   *int     `json:"channels"`
	Encoding   *string  `json:"encoding" gorm:"size:50"`

	FilePath     string  `json:"-" gorm:"size:767;not null"`
	CoverArtPath *string `json:"coverArtPath,omitempty" gorm:"size:767"`

	OwnerID   int64     `json:"ownerId" gorm:"not null;index:idx_owner_created,priority:1;index:idx_owner_artist,priority:1;index:idx_owner_genre,priority:1"`
	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_owner_created,priority:2"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Record) TableName() string {
	return "catalog_records"
}

// HasCoverArt 是否已有封面
func (r *Record) HasCoverArt() bool {
	return r.CoverArtPath != nil && *r.CoverArtPath != ""
}

// PublicRecord 通过分享链接公开的字段
type PublicRecord struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Album       string   `json:"album"`
	AlbumArtist *string  `json:"albumArtist,omitempty"`
	Genre       *string  `json:"genre,omitempty"`
	Year        *int     `json:"year,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	Format      string   `json:"format"`
	HasCoverArt bool     `json:"hasCoverArt"`
}

// Public 去掉仅 owner 可见的字段
func (r *Record) Public() PublicRecord {
	return PublicRecord{
		ID:          r.ID,
		Title:       r.Title,
		Artist:      r.Artist,
		Album:       r.Album,
		AlbumArtist: r.AlbumArtist,
		Genre:       r.Genre,
		Year:        r.Year,
		Duration:    r.Duration,
		Format:      r.Format,
		HasCoverArt: r.HasCoverArt(),
	}
}
