package email

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []EmailJob
	err  error
}

func (f *fakeSender) Send(_ context.Context, job EmailJob) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, job)
	return nil
}

func newTestService(rdb *redis.Client, sender Sender) *Service {
	svc := New(rdb, sender)
	svc.retryDelay = 0
	svc.pollBackoff = 50 * time.Millisecond
	return svc
}

func TestSend(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectLPush("emails", `.*`).SetVal(1)

	svc := newTestService(db, &fakeSender{})

	err := svc.Send(context.Background(), "user@example.com", "User", "Hello", "Test body")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSend_EmptyRecipient(t *testing.T) {
	db, _ := redismock.NewClientMock()
	svc := newTestService(db, &fakeSender{})

	assert.Error(t, svc.Send(context.Background(), "", "User", "Hello", "Body"))
}

func TestSendError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectLPush("emails", `.*`).SetErr(assert.AnError)

	svc := newTestService(db, &fakeSender{})

	err := svc.Send(context.Background(), "user@example.com", "User", "Hello", "Test body")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendPaymentReceipt(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectLPush("emails", `.*INR 10\.00.*INR 15\.00.*`).SetVal(1)

	svc := newTestService(db, &fakeSender{})

	err := svc.SendPaymentReceipt(context.Background(), "user@example.com", "User", 1000, "INR", 1500)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendBookingConfirmation(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectLPush("emails", `.*Hatha Yoga.*`).SetVal(1)

	svc := newTestService(db, &fakeSender{})

	when := time.Now().Add(24 * time.Hour)
	err := svc.SendBookingConfirmation(context.Background(), "user@example.com", "User", "Hatha Yoga", 800, &when)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendCancellation(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectLPush("emails", `.*Refunded to wallet.*`).SetVal(1)

	svc := newTestService(db, &fakeSender{})

	err := svc.SendCancellation(context.Background(), "user@example.com", "User", "Tarot reading", 500)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueLength(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectLLen("emails").SetVal(5)

	svc := newTestService(db, &fakeSender{})

	assert.Equal(t, int64(5), svc.QueueLength(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliver_Success(t *testing.T) {
	db, _ := redismock.NewClientMock()
	sender := &fakeSender{}
	svc := newTestService(db, sender)

	svc.deliver(context.Background(), EmailJob{To: "a@b.c", Subject: "s"})

	require.Len(t, sender.sent, 1)
	assert.Equal(t, 1, sender.sent[0].Tries)
}

func TestDeliver_RequeuesOnFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db, &fakeSender{err: errors.New("smtp down")})

	mock.Regexp().ExpectLPush("emails", `.*"tries":1.*`).SetVal(1)

	svc.deliver(context.Background(), EmailJob{To: "a@b.c", Subject: "s"})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliver_DeadLettersAfterMaxTries(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db, &fakeSender{err: errors.New("smtp down")})

	mock.Regexp().ExpectLPush("emails:failed", `.*smtp down.*`).SetVal(1)

	svc.deliver(context.Background(), EmailJob{To: "a@b.c", Subject: "s", Tries: maxTries - 1})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext(t *testing.T) {
	db, mock := redismock.NewClientMock()
	sender := &fakeSender{}
	svc := newTestService(db, sender)

	data, _ := json.Marshal(EmailJob{To: "a@b.c", Subject: "hello"})
	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", string(data)})
	mock.ExpectLLen("emails").SetVal(0)

	require.NoError(t, svc.processNext(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "hello", sender.sent[0].Subject)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_EmptyQueue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db, &fakeSender{})

	mock.ExpectBRPop(2*time.Second, "emails").RedisNil()

	assert.NoError(t, svc.processNext(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_RedisDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db, &fakeSender{})

	mock.ExpectBRPop(2*time.Second, "emails").SetErr(errors.New("connection refused"))

	assert.EqualError(t, svc.processNext(context.Background()), "connection refused")
}

func TestStart_BacksOffWhileRedisDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db, &fakeSender{})
	svc.pollBackoff = time.Hour

	mock.ExpectBRPop(2*time.Second, "emails").SetErr(errors.New("connection refused"))
	mock.ExpectBRPop(2*time.Second, "emails").SetErr(errors.New("connection refused"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	// the second poll never ran: the worker was waiting out its backoff
	assert.Error(t, mock.ExpectationsWereMet())
}

func TestDeliver_RequeueFailureIsReported(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := newTestService(db, &fakeSender{err: errors.New("smtp down")})

	mock.Regexp().ExpectLPush("emails", `.*"tries":1.*`).SetErr(errors.New("connection refused"))

	svc.deliver(context.Background(), EmailJob{To: "a@b.c", Subject: "s"})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSender(t *testing.T) {
	_, ok := NewSender("", "from@x", "X", "localhost", "25", "", "").(*SMTPSender)
	assert.True(t, ok)

	_, ok = NewSender("SG.key", "from@x", "X", "localhost", "25", "", "").(*SendGridSender)
	assert.True(t, ok)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "INR 12.50", formatAmount(1250, "INR"))
	assert.Equal(t, "INR 0.05", formatAmount(5, "INR"))
}
