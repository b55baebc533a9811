package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/argusai/pairing-server-go/internal/repository"
)

// CleanupJob periodically sweeps rows the request path no longer needs:
// expired pairing codes, expired sessions, and refresh tokens revoked longer
// ago than the retention window. Revoked tokens are kept for a while so reuse
// attempts stay detectable.
type CleanupJob struct {
	pairingCodeRepo repository.PairingCodeRepository
	sessionRepo     repository.SessionRepository
	tokenRepo       repository.RefreshTokenRepository
	retention       time.Duration
	interval        time.Duration
	done            chan struct{}
}

func NewCleanupJob(
	pairingCodeRepo repository.PairingCodeRepository,
	sessionRepo repository.SessionRepository,
	tokenRepo repository.RefreshTokenRepository,
	retention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		pairingCodeRepo: pairingCodeRepo,
		sessionRepo:     sessionRepo,
		tokenRepo:       tokenRepo,
		retention:       retention,
		interval:        interval,
		done:            make(chan struct{}),
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

	j.runCleanup(ctx, "pairing codes", j.pairingCodeRepo.DeleteExpired)
	j.runCleanup(ctx, "sessions", j.sessionRepo.DeleteExpired)
	j.runCleanup(ctx, "revoked refresh tokens", func(ctx context.Context) (int64, error) {
		return j.tokenRepo.DeleteRevokedBefore(ctx, time.Now().Add(-j.retention))
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
