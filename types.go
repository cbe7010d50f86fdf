package main

import "time"

type Song struct {
	ID        uint64    `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"not null"`
	Artist    string    `json:"artist" gorm:"not null"`
	Album     string    `json:"album" gorm:"not null"`
	Duration  float64   `json:"duration" gorm:"not null"`
	FileURL   string    `json:"file_url" gorm:"not null"`
	CoverURL  *string   `json:"cover_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Song) String() string {
	str := `"` + s.Title + `"`
	if s.Artist != "" {
		str += ` by ` + s.Artist
	}
	return str
}

type Playlist struct {
	ID          uint64    `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlaylistSong links one song to one playlist. The composite primary key
// makes adding the same song to a playlist twice a constraint violation.
type PlaylistSong struct {
	PlaylistID uint64    `json:"playlist_id" gorm:"primaryKey;autoIncrement:false"`
	SongID     uint64    `json:"song_id" gorm:"primaryKey;autoIncrement:false"`
	AddedAt    time.Time `json:"added_at" gorm:"autoCreateTime"`
}

// PlaylistSummary is a Playlist together with its number of songs.
type PlaylistSummary struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	SongCount   int64     `json:"song_count"`
}
