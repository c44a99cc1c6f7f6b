package library

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tunemux/logger"
	"tunemux/model"

	"github.com/bogem/id3v2"
	"github.com/google/uuid"
)

// TrackFromID3 builds a local track from the ID3 tag in data. Missing titles
// fall back to the file name; the id is derived from the absolute path so
// importing the same file twice updates one entry.
func TrackFromID3(absPath string, data []byte) (model.Track, error) {
	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err != nil {
		return model.Track{}, fmt.Errorf("read id3 tag: %w", err)
	}
	defer tag.Close()

	title := strings.TrimSpace(tag.Title())
	if title == "" {
		base := filepath.Base(absPath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	duration := 0
	if tlen := tag.GetTextFrame(tag.CommonID("Length")).Text; tlen != "" {
		if ms, err := strconv.Atoi(strings.TrimSpace(tlen)); err == nil {
			duration = ms / 1000
		}
	}

	return model.Track{
		ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+absPath)).String(),
		Title:    title,
		Artist:   strings.TrimSpace(tag.Artist()),
		Duration: duration,
		Source:   model.SourceLocal,
		URL:      absPath,
	}, nil
}

// ImportFile reads an MP3 from disk, tags it as a local track and stores its
// bytes as an offline download.
func (s *Service) ImportFile(ctx context.Context, path string) (*model.DownloadRecord, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.Size() > s.maxSize {
		return nil, fmt.Errorf("%s: %w", abs, ErrTooLarge)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	track, err := TrackFromID3(abs, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}

	rec, err := s.store.SaveOfflineTrack(ctx, track, data)
	if err != nil {
		return nil, err
	}
	s.log.Info("file imported", logger.String("path", abs), logger.String("title", track.Title))
	return rec, nil
}
