package main

import (
	"context"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type database struct {
	db *gorm.DB
}

func newDatabase(path string) (*database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&Song{}, &Playlist{}, &PlaylistSong{})
	if err != nil {
		return nil, err
	}

	return &database{
		db: db,
	}, nil
}

func (d *database) Close() error {
	return nil
}

func (d *database) GetSongs(ctx context.Context) ([]*Song, error) {
	songs := []*Song{}
	return songs, d.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&songs).Error
}

func (d *database) GetSong(ctx context.Context, id uint64) (*Song, error) {
	var song *Song
	return song, d.db.WithContext(ctx).First(&song, id).Error
}

func (d *database) CreateSong(ctx context.Context, song *Song) error {
	return d.db.WithContext(ctx).Create(song).Error
}

// DeleteSong removes the song and every playlist membership referencing it
// in a single transaction, and returns the file URL of the deleted song so
// the caller can dispose of the backing file.
func (d *database) DeleteSong(ctx context.Context, id uint64) (string, error) {
	var fileURL string
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var song Song
		err := tx.First(&song, id).Error
		if err != nil {
			return err
		}
		fileURL = song.FileURL

		err = tx.Delete(&Song{}, id).Error
		if err != nil {
			return err
		}

		return tx.Where("song_id = ?", id).Delete(&PlaylistSong{}).Error
	})
	return fileURL, err
}

func (d *database) GetPlaylists(ctx context.Context) ([]*PlaylistSummary, error) {
	playlists := []*PlaylistSummary{}
	return playlists, d.db.WithContext(ctx).
		Model(&Playlist{}).
		Select("playlists.id, playlists.name, playlists.description, playlists.created_at, COUNT(playlist_songs.song_id) AS song_count").
		Joins("LEFT JOIN playlist_songs ON playlist_songs.playlist_id = playlists.id").
		Group("playlists.id").
		Order("playlists.created_at DESC, playlists.id DESC").
		Scan(&playlists).Error
}

func (d *database) CreatePlaylist(ctx context.Context, playlist *Playlist) error {
	return d.db.WithContext(ctx).Create(playlist).Error
}

// AddSongToPlaylist checks that both sides of the membership exist before
// inserting the row. Returns [gorm.ErrRecordNotFound] for an unknown
// playlist or song and [gorm.ErrDuplicatedKey] for an existing membership.
func (d *database) AddSongToPlaylist(ctx context.Context, playlistID, songID uint64) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&Playlist{}, playlistID).Error
		if err != nil {
			return err
		}

		err = tx.First(&Song{}, songID).Error
		if err != nil {
			return err
		}

		return tx.Create(&PlaylistSong{
			PlaylistID: playlistID,
			SongID:     songID,
		}).Error
	})
}

func (d *database) RemoveSongFromPlaylist(ctx context.Context, playlistID, songID uint64) error {
	res := d.db.WithContext(ctx).
		Where("playlist_id = ? AND song_id = ?", playlistID, songID).
		Delete(&PlaylistSong{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (d *database) GetPlaylistSongs(ctx context.Context, playlistID uint64) ([]*PlaylistSong, error) {
	memberships := []*PlaylistSong{}
	return memberships, d.db.WithContext(ctx).
		Where("playlist_id = ?", playlistID).
		Order("added_at ASC").
		Find(&memberships).Error
}
