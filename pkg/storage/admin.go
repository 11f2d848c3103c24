package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jdziat/service-jobs/pkg/core"
)

// CountByStatus returns the number of stored jobs in each status. Statuses
// with no jobs are omitted.
func (s *GormStorage) CountByStatus(ctx context.Context) (map[core.Status]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&jobRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[core.Status]int64, len(rows))
	for _, r := range rows {
		counts[core.Status(r.Status)] = r.Count
	}
	return counts, nil
}

// DeleteJob permanently removes a job with its sessions and events.
func (s *GormStorage) DeleteJob(ctx context.Context, jobID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&eventRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", jobID).Delete(&sessionRecord{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", jobID).Delete(&jobRecord{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &core.NotFoundError{JobID: jobID}
		}
		return nil
	})
}

// PurgeTerminal deletes every terminal job last saved before cutoff and
// returns how many were removed.
func (s *GormStorage) PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	terminal := make([]core.Status, 0, 2)
	for _, st := range core.Statuses {
		if st.Terminal() {
			terminal = append(terminal, st)
		}
	}

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		err := tx.Model(&jobRecord{}).
			Where("status IN ?", terminal).
			Where("updated_at < ?", cutoff).
			Pluck("id", &ids).Error
		if err != nil || len(ids) == 0 {
			return err
		}
		if err := tx.Where("job_id IN ?", ids).Delete(&eventRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id IN ?", ids).Delete(&sessionRecord{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&jobRecord{})
		removed = result.RowsAffected
		return result.Error
	})
	return removed, err
}
