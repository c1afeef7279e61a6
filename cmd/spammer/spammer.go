package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/TemirB/ecommerce-orders/internal/application/command"
	"github.com/TemirB/ecommerce-orders/internal/domain"
)

type Spammer struct {
	client    *http.Client
	target    string
	logger    *zap.Logger
	isRunning atomic.Bool
	wg        sync.WaitGroup
	mu        sync.Mutex
	cancel    context.CancelFunc
	totalSent atomic.Int64
	failed    atomic.Int64
	rate      atomic.Int64
	startedAt time.Time
	rnd       *rand.Rand
}

type SpamRequest struct {
	Rate     int    `json:"rate"`
	Duration string `json:"duration"`
	Users    int    `json:"users"`
}

type SpamStats struct {
	IsRunning bool    `json:"is_running"`
	TotalSent int64   `json:"total_sent"`
	Failed    int64   `json:"failed"`
	Rate      int64   `json:"rate"`
	Actual    float64 `json:"actual_rate"`
}

// NewSpammer targets the create-order endpoint of the API at baseURL.
func NewSpammer(client *http.Client, baseURL string, logger *zap.Logger) *Spammer {
	return &Spammer{
		client: client,
		target: baseURL + "/api/orders",
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// StartSpam fires rate requests per second until duration elapses or StopSpam
// is called. A call while a run is active is ignored.
func (s *Spammer) StartSpam(rate int, duration time.Duration, users int) bool {
	if !s.isRunning.CompareAndSwap(false, true) {
		return false
	}
	if rate <= 0 {
		rate = 10
	}
	if users <= 0 {
		users = 50
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	s.mu.Lock()
	s.cancel = cancel
	s.startedAt = time.Now()
	s.wg.Add(1)
	s.mu.Unlock()
	s.totalSent.Store(0)
	s.failed.Store(0)
	s.rate.Store(int64(rate))

	s.logger.Info("starting spam", zap.Int("rate", rate), zap.Duration("duration", duration), zap.Int("users", users))

	go func() {
		defer s.wg.Done()
		defer s.isRunning.Store(false)
		defer cancel()

		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				// an in-flight request is bounded by the client timeout, not the run
				if err := s.send(context.WithoutCancel(ctx), s.fakeOrder(users)); err != nil {
					s.failed.Add(1)
					s.logger.Debug("create order failed", zap.Error(err))
					continue
				}
				s.totalSent.Add(1)
			case <-ctx.Done():
				s.logger.Info("spam finished",
					zap.Int64("total_sent", s.totalSent.Load()),
					zap.Int64("failed", s.failed.Load()),
				)
				return
			}
		}
	}()
	return true
}

func (s *Spammer) StopSpam() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Spammer) GetStats() SpamStats {
	s.mu.Lock()
	startedAt := s.startedAt
	s.mu.Unlock()

	st := SpamStats{
		IsRunning: s.isRunning.Load(),
		TotalSent: s.totalSent.Load(),
		Failed:    s.failed.Load(),
		Rate:      s.rate.Load(),
	}
	if elapsed := time.Since(startedAt).Seconds(); !startedAt.IsZero() && elapsed > 0 {
		st.Actual = float64(st.TotalSent) / elapsed
	}
	return st
}

func (s *Spammer) send(ctx context.Context, cmd command.CreateOrder) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// fakeOrder is only touched by the run goroutine, so rnd needs no lock.
func (s *Spammer) fakeOrder(users int) command.CreateOrder {
	method := domain.CreditCard
	if s.rnd.Intn(2) == 1 {
		method = domain.BankTransfer
	}
	return command.CreateOrder{
		UserID:        fmt.Sprintf("user_%d", s.rnd.Intn(users)),
		ProductID:     fmt.Sprintf("product_%d", s.rnd.Intn(1000)),
		Quantity:      s.rnd.Intn(5) + 1,
		PaymentMethod: method.String(),
	}
}
