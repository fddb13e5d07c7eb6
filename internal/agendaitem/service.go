// Package agendaitem schedules, moves and completes agenda items, writing
// an audit log entry for every transition.
package agendaitem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agendaengine/internal/calendar"
	"agendaengine/internal/domain"
	logx "agendaengine/pkg/logx"
)

type Store interface {
	CreateAgenda(ctx context.Context, date time.Time) (domain.Agenda, error)
	GetItem(ctx context.Context, id string) (domain.AgendaItem, error)
	CreateItem(ctx context.Context, agendaID string, in domain.ItemInput) (domain.AgendaItem, error)
	UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (domain.AgendaItem, error)
	AppendItemLog(ctx context.Context, log domain.AgendaItemLog) (domain.AgendaItemLog, error)
	ListItemLogs(ctx context.Context, itemID string) ([]domain.AgendaItemLog, error)
}

type Service struct {
	store Store
	now   func() time.Time
	log   logx.Logger
}

func NewService(store Store, now func() time.Time, log logx.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now, log: log.OrNop().Component("agendaitem")}
}

// Stamp formats an instant the way log values carry it.
func Stamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func (s *Service) agendaFor(ctx context.Context, dateKey string) (domain.Agenda, error) {
	date, err := calendar.StartOfDayUTC(dateKey)
	if err != nil {
		return domain.Agenda{}, err
	}
	a, err := s.store.CreateAgenda(ctx, date)
	if err != nil {
		return domain.Agenda{}, fmt.Errorf("ensure agenda %s: %w", dateKey, err)
	}
	return a, nil
}

// Schedule puts a new item on dateKey's agenda, creating the agenda first
// when needed.
func (s *Service) Schedule(ctx context.Context, dateKey string, in domain.ItemInput) (domain.AgendaItem, error) {
	if in.Duration != nil && in.StartAt == nil {
		return domain.AgendaItem{}, domain.Invalid("duration", "", errors.New("requires startAt"))
	}
	a, err := s.agendaFor(ctx, dateKey)
	if err != nil {
		return domain.AgendaItem{}, err
	}
	it, err := s.store.CreateItem(ctx, a.ID, in)
	if err != nil {
		return domain.AgendaItem{}, err
	}
	if _, err := s.store.AppendItemLog(ctx, domain.AgendaItemLog{
		AgendaItemID: it.ID,
		Type:         domain.LogCreated,
		NewValue:     map[string]any{"status": string(it.Status), "dateKey": dateKey},
	}); err != nil {
		return it, fmt.Errorf("log created: %w", err)
	}
	s.log.Debug("item scheduled", logx.String("id", it.ID), logx.String("date", dateKey))
	return it, nil
}

// RescheduleInput moves an item. Nil StartAt/Duration keep the current
// values; the Clear flags null them.
type RescheduleInput struct {
	DateKey       string
	StartAt       *time.Time
	ClearStartAt  bool
	Duration      *int
	ClearDuration bool
}

func (s *Service) Reschedule(ctx context.Context, id string, in RescheduleInput) (domain.AgendaItem, error) {
	if in.Duration != nil && *in.Duration < 0 {
		return domain.AgendaItem{}, domain.Invalid("duration", "", errors.New("must not be negative"))
	}
	cur, err := s.store.GetItem(ctx, id)
	if err != nil {
		return domain.AgendaItem{}, err
	}
	a, err := s.agendaFor(ctx, in.DateKey)
	if err != nil {
		return domain.AgendaItem{}, err
	}

	updated, err := s.store.UpdateItem(ctx, id, domain.ItemPatch{
		AgendaID:      &a.ID,
		StartAt:       in.StartAt,
		ClearStartAt:  in.ClearStartAt,
		Duration:      in.Duration,
		ClearDuration: in.ClearDuration,
	})
	if err != nil {
		return domain.AgendaItem{}, err
	}
	if _, err := s.store.AppendItemLog(ctx, domain.AgendaItemLog{
		AgendaItemID:  id,
		Type:          domain.LogRescheduled,
		PreviousValue: placement(cur),
		NewValue:      placement(updated),
	}); err != nil {
		return updated, fmt.Errorf("log rescheduled: %w", err)
	}
	s.log.Debug("item rescheduled", logx.String("id", id), logx.String("date", in.DateKey))
	return updated, nil
}

func placement(it domain.AgendaItem) map[string]any {
	out := map[string]any{"agendaId": it.AgendaID, "startAt": nil, "duration": nil}
	if it.StartAt != nil {
		out["startAt"] = Stamp(*it.StartAt)
	}
	if it.Duration != nil {
		out["duration"] = *it.Duration
	}
	return out
}

// Complete marks an item COMPLETED. A zero completedAt means now; empty
// notes keep the current notes.
func (s *Service) Complete(ctx context.Context, id string, completedAt time.Time, notes string) (domain.AgendaItem, error) {
	cur, err := s.store.GetItem(ctx, id)
	if err != nil {
		return domain.AgendaItem{}, err
	}
	if completedAt.IsZero() {
		completedAt = s.now()
	}
	status := domain.ItemCompleted
	patch := domain.ItemPatch{Status: &status}
	if n := strings.TrimSpace(notes); n != "" {
		patch.Notes = &n
	}
	updated, err := s.store.UpdateItem(ctx, id, patch)
	if err != nil {
		return domain.AgendaItem{}, err
	}
	if _, err := s.store.AppendItemLog(ctx, domain.AgendaItemLog{
		AgendaItemID:  id,
		Type:          domain.LogCompleted,
		PreviousValue: map[string]any{"status": string(cur.Status)},
		NewValue:      map[string]any{"status": string(domain.ItemCompleted), "completedAt": Stamp(completedAt)},
		Notes:         notes,
	}); err != nil {
		return updated, fmt.Errorf("log completed: %w", err)
	}
	s.log.Info("item completed", logx.String("id", id))
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.AgendaItem, error) {
	return s.store.GetItem(ctx, id)
}

func (s *Service) Logs(ctx context.Context, id string) ([]domain.AgendaItemLog, error) {
	if _, err := s.store.GetItem(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListItemLogs(ctx, id)
}
