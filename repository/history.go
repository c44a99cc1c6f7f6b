package repository

import (
	"context"
	"errors"
	"strings"

	"tunemux/logger"
	"tunemux/model"
)

// AddToHistory appends one play of track.
func (s *Store) AddToHistory(ctx context.Context, track model.Track) error {
	entry := &model.HistoryEntry{
		TrackKey:  track.Key(),
		Track:     track,
		Timestamp: s.timestamp(),
	}
	return wrap("add to history", s.db.WithContext(ctx).Create(entry).Error)
}

// GetPlayHistory returns the newest plays first. A non-positive limit means 50.
func (s *Store) GetPlayHistory(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var entries []model.HistoryEntry
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, wrap("get play history", err)
	}
	return entries, nil
}

// ClearHistory removes every play.
func (s *Store) ClearHistory(ctx context.Context) error {
	return s.History.Clear(ctx)
}

// AddSearchQuery appends a submitted query. Blank queries are ignored.
func (s *Store) AddSearchQuery(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	entry := &model.SearchHistoryEntry{Query: query, Timestamp: s.timestamp()}
	return wrap("add search query", s.db.WithContext(ctx).Create(entry).Error)
}

// GetSearchHistory returns distinct queries, most recent first, keeping only the
// latest occurrence of each. A non-positive limit means 10.
func (s *Store) GetSearchHistory(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultSearchHistoryLimit
	}

	rows, err := s.db.WithContext(ctx).
		Model(&model.SearchHistoryEntry{}).
		Order("timestamp DESC").Order("id DESC").
		Rows()
	if err != nil {
		return nil, wrap("get search history", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	queries := make([]string, 0, limit)
	for len(queries) < limit && rows.Next() {
		var entry model.SearchHistoryEntry
		if err := s.db.ScanRows(rows, &entry); err != nil {
			return nil, wrap("scan search history", err)
		}
		if _, dup := seen[entry.Query]; dup {
			continue
		}
		seen[entry.Query] = struct{}{}
		queries = append(queries, entry.Query)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate search history", err)
	}
	return queries, nil
}

// ClearSearchHistory removes every recorded query.
func (s *Store) ClearSearchHistory(ctx context.Context) error {
	return s.SearchHistory.Clear(ctx)
}

// CleanupResult counts the rows removed by a retention sweep.
type CleanupResult struct {
	History       int64
	SearchHistory int64
}

// Cleanup deletes play and search history older than 30 days. The two
// collections are swept independently; a failure in one does not undo the other.
func (s *Store) Cleanup(ctx context.Context) (CleanupResult, error) {
	cutoff := s.timestamp().Add(-retention)
	var result CleanupResult
	var errs []error

	res := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&model.HistoryEntry{})
	if res.Error != nil {
		errs = append(errs, wrap("cleanup history", res.Error))
	} else {
		result.History = res.RowsAffected
	}

	res = s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&model.SearchHistoryEntry{})
	if res.Error != nil {
		errs = append(errs, wrap("cleanup search history", res.Error))
	} else {
		result.SearchHistory = res.RowsAffected
	}

	s.log.Info("retention sweep finished",
		logger.Int64("history", result.History),
		logger.Int64("searchHistory", result.SearchHistory),
		logger.Int("errors", len(errs)))
	return result, errors.Join(errs...)
}
