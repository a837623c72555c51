package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RunJanitor prunes idle rooms every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.WithFields(logrus.Fields{
		"interval": interval.String(),
		"max_idle": maxIdle.String(),
	}).Info("room janitor started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("room janitor stopped")
			return
		case <-ticker.C:
			s.PruneIdle(maxIdle)
		}
	}
}
