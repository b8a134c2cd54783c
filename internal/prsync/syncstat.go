package prsync

import (
	"time"

	"go.uber.org/zap"
)

type syncStat struct {
	StartTime      time.Time
	EndTime        time.Time
	Changes        int
	LocalesUpdated int
}

func (s *syncStat) LogFields() []zap.Field {
	return []zap.Field{
		zap.Duration("sync_duration", s.EndTime.Sub(s.StartTime)),
		zap.Int("sync.changes_processed", s.Changes),
		zap.Int("sync.locales_updated", s.LocalesUpdated),
	}
}
