// internal/lobby/sweeper.go
package lobby

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically evicts participants that went silent for longer than
// the staleness window. It is the only recovery path for clients that vanish
// without a close frame (network loss, crashed tab).
type Sweeper struct {
	Registry *Registry
	Interval time.Duration
	Window   time.Duration
	Logger   *logrus.Logger
}

// Run blocks until the context is cancelled, sweeping once per interval.
// Evictions go through the registry's Remove path, so room cascade and
// presence broadcasts fire exactly as for an explicit disconnect.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			evicted := s.Registry.RemoveStale(now.Add(-s.Window))
			if len(evicted) > 0 && s.Logger != nil {
				s.Logger.WithFields(logrus.Fields{
					"count":  len(evicted),
					"window": s.Window,
				}).Info("Swept stale participants")
			}
		}
	}
}
