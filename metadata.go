package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
	goflac "github.com/go-flac/go-flac"
	"github.com/llehouerou/go-m4a"
	"github.com/tcolgate/mp3"
)

const unknownField = "Unknown"

var errUnrecognizedAudio = errors.New("file is not a recognized audio container")

type songMetadata struct {
	Title    string
	Artist   string
	Album    string
	Duration float64
}

// extractMetadata reads tags and duration from an audio file. Missing or
// unparseable tags degrade to "Unknown" values and a zero duration; the only
// error case is a file that cannot be recognized as audio at all.
func extractMetadata(path string) (*songMetadata, error) {
	format, err := recognizeFormat(path)
	if err != nil {
		return nil, err
	}

	md := &songMetadata{
		Title:  unknownField,
		Artist: unknownField,
		Album:  unknownField,
	}

	readTags(path, format, md)

	switch format {
	case "mp3":
		md.Duration = mp3Duration(path)
	case "flac":
		md.Duration = flacDuration(path)
	case "wav":
		md.Duration = wavDuration(path)
	case "m4a":
		md.Duration = m4aDuration(path)
	case "aac":
		md.Duration = aacDuration(path)
	}

	return md, nil
}

// recognizeFormat sniffs the container from the file header. The extension
// whitelist has already been applied by the caller; this guards against
// arbitrary bytes hiding behind an allowed extension.
func recognizeFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", errUnrecognizedAudio
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, []byte("ID3")):
		return "mp3", nil
	case len(header) >= 12 && bytes.HasPrefix(header, []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return "wav", nil
	case bytes.HasPrefix(header, []byte("fLaC")):
		return "flac", nil
	case len(header) >= 8 && bytes.Equal(header[4:8], []byte("ftyp")):
		return "m4a", nil
	case len(header) >= 2 && header[0] == 0xff && header[1]&0xe0 == 0xe0:
		// Bare MPEG/ADTS frame sync, no tag header.
		if strings.EqualFold(filepath.Ext(path), ".aac") {
			return "aac", nil
		}
		return "mp3", nil
	}

	return "", errUnrecognizedAudio
}

// readTags fills title/artist/album on md, leaving the defaults in place for
// anything it cannot read.
func readTags(path string, format string, md *songMetadata) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		// dhowden/tag has issues with some ID3v2 encodings; retry with the
		// dedicated ID3v2 reader before giving up on the tags.
		if format == "mp3" || format == "aac" {
			readID3Tags(path, md)
		}
		return
	}

	setIfPresent(&md.Title, m.Title())
	setIfPresent(&md.Artist, m.Artist())
	setIfPresent(&md.Album, m.Album())
}

func readID3Tags(path string, md *songMetadata) {
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return
	}
	defer id3tag.Close()

	setIfPresent(&md.Title, id3tag.Title())
	setIfPresent(&md.Artist, id3tag.Artist())
	setIfPresent(&md.Album, id3tag.Album())
}

func setIfPresent(dst *string, value string) {
	value = strings.TrimSpace(value)
	if value != "" {
		*dst = value
	}
}

// mp3Duration sums the duration of every MPEG frame in the file. Returns 0
// when no frame can be decoded.
func mp3Duration(path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	var (
		duration float64
		frame    mp3.Frame
		skipped  int
	)

	decoder := mp3.NewDecoder(f)
	for {
		err = decoder.Decode(&frame, &skipped)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("stopped decoding mp3 frames", "path", path, "error", err)
			}
			break
		}
		duration += frame.Duration().Seconds()
	}

	return duration
}

// wavDuration walks the RIFF chunks and divides the data chunk size by the
// byte rate from the fmt chunk.
func wavDuration(path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	header := make([]byte, 12)
	_, err = io.ReadFull(f, header)
	if err != nil {
		return 0
	}

	var byteRate, dataSize uint32
	for {
		chunk := make([]byte, 8)
		_, err = io.ReadFull(f, chunk)
		if err != nil {
			break
		}

		id := string(chunk[:4])
		size := binary.LittleEndian.Uint32(chunk[4:])

		if id == "fmt " && size >= 16 {
			data := make([]byte, size+size%2)
			_, err = io.ReadFull(f, data)
			if err != nil {
				return 0
			}
			byteRate = binary.LittleEndian.Uint32(data[8:12])
			continue
		}

		if id == "data" {
			dataSize = size
		}

		// Chunks are padded to an even length.
		_, err = f.Seek(int64(size+size%2), io.SeekCurrent)
		if err != nil {
			break
		}
	}

	if byteRate == 0 {
		return 0
	}
	return float64(dataSize) / float64(byteRate)
}

// m4aDuration reads the stream length from the MP4 container.
func m4aDuration(path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	container, err := m4a.Open(f)
	if err != nil {
		return 0
	}

	return container.Duration().Seconds()
}

var adtsSampleRates = [16]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

// aacDuration walks the ADTS frames; each frame carries 1024 samples at the
// rate encoded in its header.
func aacDuration(path string) float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	var frames int
	sampleRate := 0
	for i := 0; i+7 <= len(data); {
		if data[i] != 0xff || data[i+1]&0xf0 != 0xf0 {
			break
		}

		rate := adtsSampleRates[(data[i+2]>>2)&0x0f]
		if rate == 0 {
			break
		}
		sampleRate = rate

		frameLen := int(data[i+3]&0x03)<<11 | int(data[i+4])<<3 | int(data[i+5])>>5
		if frameLen < 7 {
			break
		}

		frames++
		i += frameLen
	}

	if sampleRate == 0 {
		return 0
	}
	return float64(frames) * 1024 / float64(sampleRate)
}

// flacDuration computes the stream length from the STREAMINFO block.
func flacDuration(path string) float64 {
	file, err := goflac.ParseFile(path)
	if err != nil {
		return 0
	}

	for _, meta := range file.Meta {
		if meta.Type != goflac.StreamInfo || len(meta.Data) < 18 {
			continue
		}
		data := meta.Data

		// Sample rate: 20 bits starting at byte 10. Total samples: 36 bits
		// starting at the low nibble of byte 13.
		sampleRate := int(data[10])<<12 | int(data[11])<<4 | int(data[12])>>4
		totalSamples := int64(data[13]&0x0f)<<32 | int64(data[14])<<24 | int64(data[15])<<16 | int64(data[16])<<8 | int64(data[17])

		if sampleRate <= 0 {
			return 0
		}
		return float64(totalSamples) / float64(sampleRate)
	}

	return 0
}
