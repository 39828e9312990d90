package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quillapp/quill-server-go/internal/repository"
)

// CleanupJob garbage-collects terminal pairing requests past their
// retention window and ages out old usage log rows. TTL-based cleanup is
// the only reclamation mechanism; live requests are expired lazily on read.
type CleanupJob struct {
	pairingRepo      repository.PairingRequestRepository
	usageRepo        repository.UsageLogRepository
	pairingRetention time.Duration
	usageRetention   time.Duration
	interval         time.Duration
	done             chan struct{}
}

func NewCleanupJob(
	pairingRepo repository.PairingRequestRepository,
	usageRepo repository.UsageLogRepository,
	pairingRetention time.Duration,
	usageRetention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		pairingRepo:      pairingRepo,
		usageRepo:        usageRepo,
		pairingRetention: pairingRetention,
		usageRetention:   usageRetention,
		interval:         interval,
		done:             make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "pairing requests", func(ctx context.Context) (int64, error) {
		return j.pairingRepo.DeleteTerminalBefore(ctx, time.Now().Add(-j.pairingRetention))
	})
	j.runCleanup(ctx, "usage log entries", func(ctx context.Context) (int64, error) {
		return j.usageRepo.DeleteBefore(ctx, time.Now().Add(-j.usageRetention))
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
