// Package expiry marks overdue PENDING agenda items as UNFINISHED.
package expiry

import (
	"context"
	"fmt"
	"time"

	"agendaengine/internal/domain"
	logx "agendaengine/pkg/logx"
)

type Store interface {
	ListExpirable(ctx context.Context) ([]domain.AgendaItem, error)
	UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (domain.AgendaItem, error)
	AppendItemLog(ctx context.Context, log domain.AgendaItemLog) (domain.AgendaItemLog, error)
}

type Result struct {
	MarkedCount int                 `json:"markedCount"`
	Items       []domain.AgendaItem `json:"items"`
}

type Transitioner struct {
	store Store
	now   func() time.Time
	log   logx.Logger
}

func New(store Store, now func() time.Time, log logx.Logger) *Transitioner {
	if now == nil {
		now = time.Now
	}
	return &Transitioner{store: store, now: now, log: log.OrNop().Component("expiry")}
}

// Expired reports whether it ended strictly before now.
func Expired(it domain.AgendaItem, now time.Time) bool {
	if it.Status != domain.ItemPending {
		return false
	}
	end, ok := it.End()
	return ok && now.After(end)
}

// Execute marks every expired item. It stops at the first failure; items
// already marked stay marked.
func (t *Transitioner) Execute(ctx context.Context) (Result, error) {
	now := t.now()
	candidates, err := t.store.ListExpirable(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list expirable: %w", err)
	}

	res := Result{Items: []domain.AgendaItem{}}
	for _, it := range candidates {
		if !Expired(it, now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		unfinished := domain.ItemUnfinished
		updated, err := t.store.UpdateItem(ctx, it.ID, domain.ItemPatch{Status: &unfinished})
		if err != nil {
			return res, fmt.Errorf("mark %s unfinished: %w", it.ID, err)
		}
		if _, err := t.store.AppendItemLog(ctx, domain.AgendaItemLog{
			AgendaItemID:  it.ID,
			Type:          domain.LogMarkedUnfinished,
			PreviousValue: map[string]any{"status": string(domain.ItemPending)},
			NewValue: map[string]any{
				"status":   string(domain.ItemUnfinished),
				"markedAt": now.UTC().Format(time.RFC3339Nano),
			},
		}); err != nil {
			return res, fmt.Errorf("log %s: %w", it.ID, err)
		}
		res.Items = append(res.Items, updated)
		res.MarkedCount++
	}

	if res.MarkedCount == 0 {
		t.log.Debug("no expired items", logx.Int("candidates", len(candidates)))
		return res, nil
	}
	t.log.Info("marked items unfinished", logx.Int("count", res.MarkedCount))
	return res, nil
}
