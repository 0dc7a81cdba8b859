package maintenance

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docqa/internal/common"
	"github.com/ternarybob/docqa/internal/interfaces"
)

// Service runs periodic value log garbage collection on the passage store.
// Upserts that overwrite passages leave stale values behind; GC reclaims them.
type Service struct {
	storage interfaces.StorageManager
	config  common.MaintenanceConfig
	logger  arbor.ILogger
	cron    *cron.Cron
	mu      sync.Mutex // serialises GC runs
	running bool
	lastRun time.Time
	lastErr error
}

// NewService creates the maintenance scheduler
func NewService(storage interfaces.StorageManager, config common.MaintenanceConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		config:  config,
		logger:  logger,
		cron:    cron.New(cron.WithSeconds()),
	}
}

// Start registers the GC job on the configured schedule
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Debug().Msg("Store maintenance disabled")
		return nil
	}
	if s.running {
		return fmt.Errorf("maintenance scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.runScheduled); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", s.config.Schedule, err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Float64("discard_ratio", s.config.DiscardRatio).
		Msg("Store maintenance scheduled")

	return nil
}

// Stop halts the scheduler and waits for a running GC to finish
func (s *Service) Stop() {
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Debug().Msg("Store maintenance stopped")
}

// RunNow performs one GC pass and returns the number of rewritten value log files
func (s *Service) RunNow() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	rewritten, err := s.storage.RunGC(s.config.DiscardRatio)
	s.lastRun = start
	s.lastErr = err
	if err != nil {
		return rewritten, fmt.Errorf("value log GC failed: %w", err)
	}

	s.logger.Info().
		Int("rewritten", rewritten).
		Dur("duration", time.Since(start)).
		Msg("Value log GC completed")

	return rewritten, nil
}

// LastRun returns the time and outcome of the most recent GC pass
func (s *Service) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func (s *Service) runScheduled() {
	defer common.RecoverPanic(s.logger, "storeMaintenance")

	if _, err := s.RunNow(); err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled store maintenance failed")
	}
}
