package synchronizer

import (
	"context"
	"time"
)

// Watch consumes the insert feed until ctx is canceled. After every
// (re)subscription it runs a full Resync, so records inserted while no
// subscription was active are not missed. Lost subscriptions are retried with
// exponential backoff.
func (s *Synchronizer) Watch(ctx context.Context) error {
	backoff := s.config.ReconnectMin

	for {
		sub, err := s.feed.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("feed subscription failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = s.nextBackoff(backoff)
			continue
		}

		if err := s.Resync(ctx); err != nil {
			s.closeSubscription(sub)
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("resync after subscribe failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = s.nextBackoff(backoff)
			continue
		}

		s.logger.Info("watching for new persons")
		backoff = s.config.ReconnectMin

		err = s.consume(ctx, sub)
		s.closeSubscription(sub)
		if ctx.Err() != nil {
			s.logger.Info("watcher stopped")
			return nil
		}

		s.logger.Warn("feed lost, reconnecting", "error", err, "retry_in", backoff)
		if !sleep(ctx, backoff) {
			return nil
		}
		backoff = s.nextBackoff(backoff)
	}
}

func (s *Synchronizer) consume(ctx context.Context, sub Subscription) error {
	for {
		person, err := sub.Next(ctx)
		if err != nil {
			return err
		}

		s.logger.Debug("person inserted", "person_id", person.ID, "status", person.Status)
		if _, err := s.Admit(ctx, person); err != nil {
			return err
		}
	}
}

// RunPeriodicResync reloads the registry every ResyncInterval until ctx is
// canceled. It returns immediately when the interval is zero.
func (s *Synchronizer) RunPeriodicResync(ctx context.Context) {
	if s.config.ResyncInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.config.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Resync(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("periodic resync failed", "error", err)
			}
		}
	}
}

func (s *Synchronizer) closeSubscription(sub Subscription) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sub.Close(ctx)
}

func (s *Synchronizer) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > s.config.ReconnectMax {
		next = s.config.ReconnectMax
	}
	return next
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
