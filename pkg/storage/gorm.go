package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jdziat/service-jobs/pkg/aggregate"
	"github.com/jdziat/service-jobs/pkg/core"
)

// GormStorage implements core.Storage using GORM.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// DB returns the underlying connection.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&jobRecord{}, &sessionRecord{}, &eventRecord{})
}

// SaveSnapshot writes snap in one transaction. It returns
// core.ErrStaleSnapshot when the stored version is the same or newer, so a
// slow writer can never roll a job back.
func (s *GormStorage) SaveSnapshot(ctx context.Context, snap *core.JobSnapshot) error {
	if snap == nil || snap.ID == "" {
		return &core.ValidationError{Field: "snapshot", Reason: "snapshot without id"}
	}
	rec := toJobRecord(snap)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current jobRecord
		err := tx.Select("id", "version").Where("id = ?", snap.ID).First(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("insert job: %w", err)
			}
		case err != nil:
			return err
		default:
			result := tx.Model(&jobRecord{}).
				Where("id = ? AND version < ?", snap.ID, snap.Version).
				Select("*").Omit("id").
				Updates(&rec)
			if result.Error != nil {
				return fmt.Errorf("update job: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return core.ErrStaleSnapshot
			}
		}

		// Sessions close in place, so they are replaced wholesale.
		if err := tx.Where("job_id = ?", snap.ID).Delete(&sessionRecord{}).Error; err != nil {
			return fmt.Errorf("clear sessions: %w", err)
		}
		if sessions := toSessionRecords(snap.ID, snap.Sessions); len(sessions) > 0 {
			if err := tx.CreateInBatches(sessions, 100).Error; err != nil {
				return fmt.Errorf("insert sessions: %w", err)
			}
		}

		// Events are append-only; write only the ones not stored yet.
		var lastSeq int
		err = tx.Model(&eventRecord{}).
			Where("job_id = ?", snap.ID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&lastSeq).Error
		if err != nil {
			return fmt.Errorf("read last event: %w", err)
		}
		var events []eventRecord
		for _, e := range snap.Events {
			if e.Seq > lastSeq {
				e.JobID = snap.ID
				events = append(events, toEventRecord(e))
			}
		}
		if len(events) > 0 {
			if err := tx.CreateInBatches(events, 100).Error; err != nil {
				return fmt.Errorf("insert events: %w", err)
			}
		}
		return nil
	})
}

// LoadSnapshot returns the stored snapshot of jobID with derived fields
// measured at the time it was saved.
func (s *GormStorage) LoadSnapshot(ctx context.Context, jobID string) (*core.JobSnapshot, error) {
	var rec jobRecord
	err := s.db.WithContext(ctx).Where("id = ?", jobID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &core.NotFoundError{JobID: jobID}
	}
	if err != nil {
		return nil, err
	}
	snaps, err := s.hydrate(ctx, []jobRecord{rec})
	if err != nil {
		return nil, err
	}
	return snaps[0], nil
}

// ListSnapshots returns up to limit jobs, newest first. An empty status
// matches every job.
func (s *GormStorage) ListSnapshots(ctx context.Context, status core.Status, limit int) ([]*core.JobSnapshot, error) {
	q := s.db.WithContext(ctx).Model(&jobRecord{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []jobRecord
	if err := q.Order("created_at DESC, id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return s.hydrate(ctx, recs)
}

// hydrate loads the sessions and events of recs and rebuilds full snapshots.
func (s *GormStorage) hydrate(ctx context.Context, recs []jobRecord) ([]*core.JobSnapshot, error) {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}

	var sessions []sessionRecord
	err := s.db.WithContext(ctx).
		Where("job_id IN ?", ids).
		Order("job_id, position").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	var events []eventRecord
	err = s.db.WithContext(ctx).
		Where("job_id IN ?", ids).
		Order("job_id, seq").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	sessionsByJob := make(map[string][]core.SessionView, len(recs))
	for _, r := range sessions {
		sessionsByJob[r.JobID] = append(sessionsByJob[r.JobID], core.SessionView{Session: core.Session{
			TechnicianID: r.TechnicianID,
			StartTime:    r.StartTime.UTC(),
			EndTime:      utcPtr(r.EndTime),
		}})
	}
	eventsByJob := make(map[string][]core.Event, len(recs))
	for _, r := range events {
		eventsByJob[r.JobID] = append(eventsByJob[r.JobID], r.event())
	}

	out := make([]*core.JobSnapshot, 0, len(recs))
	for _, r := range recs {
		base := &core.JobSnapshot{
			ID:          r.ID,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt.UTC(),
			StartTime:   utcPtr(r.StartTime),
			CompletedAt: utcPtr(r.CompletedAt),
			Metadata:    r.Metadata,
			Technicians: r.Technicians,
			Sessions:    sessionsByJob[r.ID],
			Events:      eventsByJob[r.ID],
			Version:     r.Version,
		}
		// Rebuilding through the aggregate validates the stored rows and
		// fills in the derived fields the same way live snapshots do.
		agg, err := aggregate.Restore(base)
		if err != nil {
			return nil, fmt.Errorf("restore job %s: %w", r.ID, err)
		}
		snap := agg.Snapshot(r.AsOf.UTC())
		out = append(out, &snap)
	}
	return out, nil
}

// IsSQLite reports whether the connection uses the SQLite dialect.
func (s *GormStorage) IsSQLite() bool {
	return s.db.Dialector.Name() == "sqlite"
}
