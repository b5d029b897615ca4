package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/redlock"
	"github.com/ignatzorin/roadside-backend/internal/repository"
)

// Sweeper автоотклонение просроченных процессов.
type Sweeper interface {
	Sweep(ctx context.Context, owner repository.OwnerScope) (int, error)
}

// Releaser зачисление выплат, по которым истёк срок оспаривания.
type Releaser interface {
	ReleaseDue(ctx context.Context) (int, error)
}

// Locker распределённая блокировка, чтобы тик выполнял один инстанс.
type Locker interface {
	Lock(ctx context.Context, ttl time.Duration) error
	Extend(ctx context.Context, ttl time.Duration) error
	Unlock(ctx context.Context) error
}

// Scheduler по таймеру прогоняет автоотклонение и выплаты под блокировкой.
type Scheduler struct {
	sweeper  Sweeper
	releaser Releaser
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration
	log      *logrus.Entry

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New создаёт планировщик. locker может быть nil, тогда тик выполняется без блокировки.
func New(sweeper Sweeper, releaser Releaser, locker Locker, interval time.Duration) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		releaser: releaser,
		locker:   locker,
		interval: interval,
		lockTTL:  interval,
		log:      logger.For("scheduler"),
	}
}

// Start запускает фоновый цикл. Повторный вызов ничего не делает.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	s.log.WithField("interval", s.interval.String()).Info("планировщик запущен")
}

// Stop останавливает цикл и ждёт завершения текущего тика.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("планировщик остановлен")
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.log.WithError(err).Error("тик планировщика завершился с ошибкой")
			}
		}
	}
}

// Tick выполняет один проход: автоотклонение по всем процессам, затем выплаты.
// Если блокировку держит другой инстанс, проход пропускается.
func (s *Scheduler) Tick(ctx context.Context) error {
	if s.locker != nil {
		if err := s.locker.Lock(ctx, s.lockTTL); err != nil {
			if errors.Is(err, redlock.ErrLockHeld) {
				s.log.Debug("тик выполняет другой инстанс")
				return nil
			}
			return err
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.log.WithError(err).Warn("не удалось снять блокировку")
			}
		}()
	}

	var errs []error
	expired, err := s.sweeper.Sweep(ctx, repository.OwnerScope{})
	if err != nil {
		errs = append(errs, err)
	}

	// автоотклонение могло съесть большую часть ttl; выплаты идут только под своей блокировкой
	if s.locker != nil {
		if err := s.locker.Extend(ctx, s.lockTTL); err != nil {
			s.log.WithError(err).Warn("блокировка потеряна, выплаты пропущены")
			return errors.Join(append(errs, err)...)
		}
	}

	released, err := s.releaser.ReleaseDue(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	if expired > 0 || released > 0 {
		s.log.WithFields(logrus.Fields{"expired": expired, "released": released}).Info("тик планировщика выполнен")
	}
	return errors.Join(errs...)
}
