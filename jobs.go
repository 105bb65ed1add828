package b3cverify

import (
	"time"
)

const tombstoneLife = 24 * time.Hour

func (s *B3cVerify) runJobs() {
	s.scheduler.Every(1).Minute().SingletonMode().Do(s.pruneLockouts)
	s.scheduler.Every(1).Minute().SingletonMode().Do(s.pruneClosed)
	s.scheduler.Every(10).Minutes().SingletonMode().Do(s.pruneTombstones)
	s.scheduler.Every(10).Seconds().SingletonMode().Do(s.updateGauges)

	s.scheduler.StartAsync()
}

// pruneLockouts removes persisted lockouts whose cooldown already ended.
func (s *B3cVerify) pruneLockouts() {
	lockouts, err := s.store.LoadAllLockouts()
	if err != nil {
		log.Error("s.store.LoadAllLockouts()", "err", err)
		return
	}
	now := s.clock.Now()
	for _, l := range lockouts {
		if now.Before(l.Until) {
			continue
		}
		if err := s.store.DelLockout(l.PaymentId); err != nil {
			log.Error("s.store.DelLockout(l.PaymentId)", "err", err, "paymentId", l.PaymentId)
		}
	}
}

func (s *B3cVerify) pruneClosed() {
	if n := s.ctrl.PruneClosed(); n > 0 {
		log.Info("prune closed payments past their window", "number", n)
	}
}

func (s *B3cVerify) pruneTombstones() {
	n := s.ctrl.Registry().PruneExpired(s.clock.Now().Add(-tombstoneLife))
	if n > 0 {
		log.Debug("prune expired payment tombstones", "number", n)
	}
}

func (s *B3cVerify) updateGauges() {
	metricGauges(s.ctrl.Registry().Len(), s.ctrl.Tracker().Len())
}
