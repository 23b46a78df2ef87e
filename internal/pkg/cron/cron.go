package cron

import (
	"context"
	"log"
	"sync"
	"time"
)

// CodeSweeper 清理过期验证码
type CodeSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type Service struct {
	sweeper  CodeSweeper
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewService(sweeper CodeSweeper, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Service{
		sweeper:  sweeper,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runSweep()
	log.Printf("Cron service started (verification code sweep every %s)", s.interval)
}

// Stop 停止定时任务
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		log.Println("Cron service stopped")
	})
}

// runSweep 按固定间隔清理
func (s *Service) runSweep() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		log.Printf("Failed to sweep expired verification codes: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Swept %d expired verification codes", n)
	}
}

// RunNow 立即执行一次清理（用于测试或手动触发）
func (s *Service) RunNow(ctx context.Context) (int64, error) {
	log.Println("Manual verification code sweep triggered...")
	return s.sweeper.SweepExpired(ctx)
}
