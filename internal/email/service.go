package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Durgesh2022/yoga-app/internal/logger"
	"github.com/Durgesh2022/yoga-app/internal/metrics"
)

const (
	queueKey   = "emails"
	failedKey  = "emails:failed"
	maxTries   = 3
	retryDelay = 5 * time.Second

	pollBackoff    = time.Second
	maxPollBackoff = 30 * time.Second
)

type EmailJob struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// Mailer is what the domain services depend on.
type Mailer interface {
	SendPaymentReceipt(ctx context.Context, to, name string, amount int64, currency string, balanceAfter int64) error
	SendBookingConfirmation(ctx context.Context, to, name, title string, amount int64, when *time.Time) error
	SendCancellation(ctx context.Context, to, name, title string, refunded int64) error
}

type Service struct {
	redis       *redis.Client
	sender      Sender
	retryDelay  time.Duration
	pollBackoff time.Duration
}

func New(rdb *redis.Client, sender Sender) *Service {
	return &Service{
		redis:       rdb,
		sender:      sender,
		retryDelay:  retryDelay,
		pollBackoff: pollBackoff,
	}
}

func (s *Service) Send(ctx context.Context, to, name, subject, body string) error {
	if to == "" {
		return errors.New("recipient required")
	}

	job := EmailJob{
		To:      to,
		Name:    name,
		Subject: subject,
		Body:    body,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal email job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		logger.Errorf("Failed to queue email to %s: %v", to, err)
		return err
	}

	logger.Debug("email queued", "subject", subject, "to", to)
	return nil
}

// Start drains the queue until ctx is cancelled. While Redis is unreachable
// it backs off instead of polling in a tight loop.
func (s *Service) Start(ctx context.Context) {
	logger.Info("Email service started")

	backoff := s.pollBackoff
	for {
		if ctx.Err() != nil {
			logger.Info("Email service stopped")
			return
		}

		err := s.processNext(ctx)
		if err == nil || ctx.Err() != nil {
			backoff = s.pollBackoff
			continue
		}

		logger.WithError(err).Warn("email queue unavailable", "retry_in", backoff)
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxPollBackoff)
	}
}

// processNext handles at most one job. An empty queue is not an error.
func (s *Service) processNext(ctx context.Context) error {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad email data: %v", err)
		return nil
	}

	s.deliver(ctx, job)
	metrics.EmailQueueLength.Set(float64(s.QueueLength(ctx)))
	return nil
}

func (s *Service) deliver(ctx context.Context, job EmailJob) {
	job.Tries++
	if err := s.sender.Send(ctx, job); err != nil {
		logger.Errorf("Failed to send email to %s (attempt %d): %v", job.To, job.Tries, err)

		if job.Tries < maxTries {
			select {
			case <-ctx.Done():
			case <-time.After(s.retryDelay):
			}
			data, _ := json.Marshal(job)
			if err := s.redis.LPush(context.Background(), queueKey, string(data)).Err(); err != nil {
				logger.WithError(err).Error("email lost: requeue failed",
					"to", job.To, "subject", job.Subject, "tries", job.Tries)
				metrics.RecordEmail("lost")
				return
			}
			metrics.RecordEmail("retried")
		} else {
			s.saveFailed(job, err)
			metrics.RecordEmail("failed")
		}
		return
	}

	metrics.RecordEmail("sent")
	logger.Infof("Email sent successfully to %s", job.To)
}

func (s *Service) saveFailed(job EmailJob, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	if err := s.redis.LPush(context.Background(), failedKey, string(data)).Err(); err != nil {
		logger.WithError(err).Error("email lost: dead-letter write failed", "to", job.To, "subject", job.Subject)
		return
	}
	logger.Errorf("Email moved to failed queue: %s", job.To)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}

func formatAmount(minor int64, currency string) string {
	return currency + " " + decimal.New(minor, -2).StringFixed(2)
}

func (s *Service) SendPaymentReceipt(ctx context.Context, to, name string, amount int64, currency string, balanceAfter int64) error {
	subject := "Wallet recharged - " + formatAmount(amount, currency)
	body := fmt.Sprintf(`Hi %s,

We received your payment of %s.

Your wallet balance is now %s.

- Sattva Team`, name, formatAmount(amount, currency), formatAmount(balanceAfter, currency))

	return s.Send(ctx, to, name, subject, body)
}

func (s *Service) SendBookingConfirmation(ctx context.Context, to, name, title string, amount int64, when *time.Time) error {
	schedule := "to be scheduled"
	if when != nil {
		schedule = when.Format("Jan 2, 2006 at 3:04 PM")
	}

	subject := "Booking Confirmed - " + title
	body := fmt.Sprintf(`Hi %s,

Your booking is confirmed!

Booking: %s
Paid from wallet: %s
Time: %s

- Sattva Team`, name, title, formatAmount(amount, "INR"), schedule)

	return s.Send(ctx, to, name, subject, body)
}

func (s *Service) SendCancellation(ctx context.Context, to, name, title string, refunded int64) error {
	refund := "No payment was taken."
	if refunded > 0 {
		refund = "Refunded to wallet: " + formatAmount(refunded, "INR")
	}

	subject := "Booking Cancelled - " + title
	body := fmt.Sprintf(`Hi %s,

Your booking has been cancelled:

Booking: %s
%s

- Sattva Team`, name, title, refund)

	return s.Send(ctx, to, name, subject, body)
}
