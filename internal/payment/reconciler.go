package payment

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/Durgesh2022/yoga-app/internal/logger"
	"github.com/Durgesh2022/yoga-app/internal/metrics"
)

const (
	reconcileBatch       = 100
	reconcileConcurrency = 4
)

type orderResolver interface {
	ListOpen(ctx context.Context, olderThan time.Time, afterID, limit int) ([]Order, error)
	Reconcile(ctx context.Context, o Order, expireBefore time.Time) (string, error)
}

// Reconciler periodically resolves orders whose checkout callback never
// arrived, using the gateway as the source of truth.
type Reconciler struct {
	svc          orderResolver
	pendingAfter time.Duration
	expiry       time.Duration
	cron         *cron.Cron
	now          func() time.Time
}

func NewReconciler(svc Service, pendingAfter, expiry time.Duration) *Reconciler {
	return &Reconciler{
		svc:          svc,
		pendingAfter: pendingAfter,
		expiry:       expiry,
		cron:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:          time.Now,
	}
}

// Start schedules RunOnce. The returned error is a bad schedule spec.
func (r *Reconciler) Start(ctx context.Context, schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if _, err := r.RunOnce(runCtx); err != nil {
			logger.WithError(err).Error("reconcile run failed")
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	logger.Info("payment reconciler started", "schedule", schedule)
	return nil
}

// Stop waits for a running job to finish.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
	logger.Info("payment reconciler stopped")
}

// RunOnce pages through every open order and returns how many ended in
// each result. Orders that stay pending do not hold back later pages.
func (r *Reconciler) RunOnce(ctx context.Context) (map[string]int, error) {
	now := r.now()
	olderThan := now.Add(-r.pendingAfter)
	expireBefore := now.Add(-r.expiry)

	counts := map[string]int{}
	total, afterID := 0, 0
	for {
		orders, err := r.svc.ListOpen(ctx, olderThan, afterID, reconcileBatch)
		if err != nil {
			return counts, err
		}
		for _, res := range r.resolve(ctx, orders, expireBefore) {
			counts[res]++
			metrics.RecordReconcile(res)
		}
		total += len(orders)

		if len(orders) < reconcileBatch {
			break
		}
		afterID = orders[len(orders)-1].ID
		if err := ctx.Err(); err != nil {
			return counts, err
		}
	}

	if total > 0 {
		logger.Info("reconcile run finished", "orders", total, "results", counts)
	}
	return counts, nil
}

func (r *Reconciler) resolve(ctx context.Context, orders []Order, expireBefore time.Time) []string {
	results := make([]string, len(orders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)

	for i := range orders {
		g.Go(func() error {
			res, err := r.svc.Reconcile(gctx, orders[i], expireBefore)
			if err != nil {
				// one failing order must not stop the batch
				logger.WithError(err).Warn("reconcile order", "order_id", orders[i].ID)
				res = "error"
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
