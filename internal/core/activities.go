package core

import (
	"context"
	"time"

	"alquimist/pkg/domain"
)

// Activity paging and retention defaults.
const (
	DefaultActivityLimit = 50
	DefaultPurgeDays     = 30
)

// ActivityFilter narrows and pages ListActivities.
type ActivityFilter struct {
	UserID   string
	Category domain.ActivityCategory
	Limit    int
	Offset   int
}

// ActivityPage is one page of activities, newest first.
type ActivityPage struct {
	Items   []domain.Activity `json:"items"`
	Total   int               `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
	HasMore bool              `json:"hasMore"`
}

// ListActivities filters activities by user and category and returns the
// requested page. Limit defaults to 50 and offset to 0.
func (s *Service) ListActivities(ctx context.Context, filter ActivityFilter) (ActivityPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultActivityLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	page := ActivityPage{Items: []domain.Activity{}, Limit: filter.Limit, Offset: filter.Offset}
	err := s.view(ctx, "list_activities", func(v TransactionView) error {
		var matched []domain.Activity
		for _, a := range v.ListActivities() {
			if (filter.UserID == "" || a.UserID == filter.UserID) &&
				(filter.Category == "" || a.Category == filter.Category) {
				matched = append(matched, a)
			}
		}
		page.Total = len(matched)
		if filter.Offset < len(matched) {
			end := min(filter.Offset+filter.Limit, len(matched))
			page.Items = matched[filter.Offset:end]
		}
		page.HasMore = filter.Offset+filter.Limit < page.Total
		return nil
	})
	return page, err
}

// RecordActivity appends an explicitly posted activity stamped with the
// transaction time.
func (s *Service) RecordActivity(ctx context.Context, in ActivityInput) (domain.Activity, Result, error) {
	const op = "record_activity"
	if err := in.Validate(false); err != nil {
		return domain.Activity{}, Result{}, s.reject(ctx, op, err)
	}
	var out domain.Activity
	res, err := s.run(ctx, op, func(tx Transaction) error {
		var err error
		out, err = tx.AppendActivity(in.activity())
		return err
	})
	return out, res, err
}

// PurgeActivities removes activities older than days (30 when negative) and
// returns how many were removed.
func (s *Service) PurgeActivities(ctx context.Context, days int) (int, Result, error) {
	if days < 0 {
		days = DefaultPurgeDays
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	var removed int
	res, err := s.run(ctx, "purge_activities", func(tx Transaction) error {
		removed = tx.PurgeActivities(cutoff)
		return nil
	})
	return removed, res, err
}
