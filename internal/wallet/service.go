package wallet

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Durgesh2022/yoga-app/internal/events"
	"github.com/Durgesh2022/yoga-app/internal/logger"
	"github.com/Durgesh2022/yoga-app/internal/metrics"
	"github.com/Durgesh2022/yoga-app/internal/obs"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

type Service interface {
	Credit(ctx context.Context, e Entry, hooks ...TxHook) (*Result, error)
	Debit(ctx context.Context, e Entry, hooks ...TxHook) (*Result, error)
	Balance(ctx context.Context, userID int) (int64, error)
	History(ctx context.Context, userID, limit, offset int) ([]HistoryItem, error)
	Audit(ctx context.Context, userID int) (*AuditReport, error)
}

type service struct {
	repo      Repository
	publisher events.Publisher
}

func NewService(repo Repository, publisher events.Publisher) Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &service{repo: repo, publisher: publisher}
}

func (s *service) Credit(ctx context.Context, e Entry, hooks ...TxHook) (*Result, error) {
	e.Type = TypeCredit
	return s.apply(ctx, e, hooks)
}

func (s *service) Debit(ctx context.Context, e Entry, hooks ...TxHook) (*Result, error) {
	e.Type = TypeDebit
	return s.apply(ctx, e, hooks)
}

func (s *service) apply(ctx context.Context, e Entry, hooks []TxHook) (*Result, error) {
	ctx, span := obs.Tracer("wallet").Start(ctx, "wallet.apply")
	defer span.End()
	span.SetAttributes(
		attribute.Int("user.id", e.UserID),
		attribute.String("wallet.type", string(e.Type)),
		attribute.String("wallet.category", string(e.Category)),
		attribute.Int64("wallet.amount", e.Amount),
	)

	res, err := s.repo.Apply(ctx, e, hooks...)
	if err != nil {
		var short *InsufficientBalance
		if errors.As(err, &short) {
			metrics.RecordWalletMutation(string(e.Type), string(e.Category), "insufficient", 0)
			metrics.RecordShortfall()
			logger.Info("wallet debit refused",
				"user_id", e.UserID,
				"required", short.Required,
				"available", short.Available,
				"key", e.IdempotencyKey,
			)
			return nil, err
		}

		metrics.RecordWalletMutation(string(e.Type), string(e.Category), "error", 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if res.Duplicate {
		metrics.RecordWalletMutation(string(e.Type), string(e.Category), "duplicate", 0)
		logger.Info("wallet mutation already applied",
			"user_id", e.UserID,
			"key", e.IdempotencyKey,
			"transaction_id", res.Transaction.ID,
		)
		return res, nil
	}

	t := res.Transaction
	metrics.RecordWalletMutation(string(t.Type), string(t.Category), "applied", t.Amount)
	logger.Info("wallet mutation applied",
		"user_id", t.UserID,
		"type", t.Type,
		"category", t.Category,
		"amount", t.Amount,
		"balance_after", t.BalanceAfter,
		"transaction_id", t.ID,
	)

	key := events.WalletCredited
	if t.Type == TypeDebit {
		key = events.WalletDebited
	}
	if err := s.publisher.Publish(ctx, key, t); err != nil {
		logger.WithError(err).Warn("publish wallet event", "key", key, "transaction_id", t.ID)
	}

	return res, nil
}

func (s *service) Balance(ctx context.Context, userID int) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

func (s *service) History(ctx context.Context, userID, limit, offset int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	if _, err := s.repo.GetBalance(ctx, userID); err != nil {
		return nil, err
	}

	txs, err := s.repo.History(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(txs))
	for _, t := range txs {
		items = append(items, newHistoryItem(t))
	}
	return items, nil
}

// Audit replays the ledger in creation order and checks that every
// balance_after matches the running sum and that the sum equals the stored
// balance.
func (s *service) Audit(ctx context.Context, userID int) (*AuditReport, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	txs, err := s.repo.Ledger(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		UserID:           userID,
		Balance:          balance,
		TransactionCount: len(txs),
	}

	var sum int64
	for i := range txs {
		sum += txs[i].Signed()
		if report.FirstMismatchID == nil && txs[i].BalanceAfter != sum {
			id := txs[i].ID
			report.FirstMismatchID = &id
		}
	}
	report.LedgerSum = sum
	report.Consistent = sum == balance && report.FirstMismatchID == nil

	if !report.Consistent {
		logger.Error("wallet ledger mismatch",
			"user_id", userID,
			"balance", balance,
			"ledger_sum", sum,
		)
	}
	return report, nil
}
