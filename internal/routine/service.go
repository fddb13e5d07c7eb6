package routine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hay-kot/criterio"

	"agendaengine/internal/domain"
	logx "agendaengine/pkg/logx"
)

// Store is the routine service's persistence.
type Store interface {
	AgendaStore
	CreateRoutine(ctx context.Context, in domain.RoutineInput) (domain.Routine, error)
	UpdateRoutine(ctx context.Context, id string, patch domain.RoutinePatch) (domain.Routine, error)
	GetRoutine(ctx context.Context, id string) (domain.Routine, error)
	ListRoutines(ctx context.Context) ([]domain.Routine, error)
	CreateRoutineTasks(ctx context.Context, in []domain.RoutineTaskInput) ([]domain.RoutineTask, error)
	DeleteRoutineTasks(ctx context.Context, routineID string) ([]string, error)
	CreateTaskLog(ctx context.Context, routineTaskID, value string) (domain.RoutineTaskLog, error)
}

// Service creates and edits routines, keeping their tasks and today's
// agenda in step with the routine definition.
type Service struct {
	store   Store
	planner *AgendaPlanner
	now     func() time.Time
	log     logx.Logger
}

func NewService(store Store, planner *AgendaPlanner, now func() time.Time, log logx.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, planner: planner, now: now, log: log.OrNop().Component("routine")}
}

var validTypes = []domain.RoutineType{domain.RoutineSleep, domain.RoutineStep, domain.RoutineOther}

func checkType(t domain.RoutineType) error {
	for _, v := range validTypes {
		if t == v {
			return nil
		}
	}
	return fmt.Errorf("must be one of SLEEP, STEP, OTHER")
}

func checkStatus(s domain.RoutineStatus) error {
	if s == domain.RoutineActive || s == domain.RoutinePaused {
		return nil
	}
	return fmt.Errorf("must be ACTIVE or PAUSED")
}

func checkSeparateInto(n int) error {
	if n < 1 {
		return errors.New("must be at least 1")
	}
	return nil
}

func checkRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("is required")
	}
	return nil
}

func checkInterval(p *int) error {
	if p != nil && *p <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

// checkTarget only runs once the type is known to be valid.
func checkTarget(r domain.Routine) error {
	if checkType(r.Type) != nil {
		return nil
	}
	_, err := BuildTasks(r)
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Err
	}
	return err
}

// validate checks a complete routine definition, target format included.
func validate(r domain.Routine) error {
	err := criterio.ValidateStruct(
		criterio.Run("name", r.Name, checkRequired),
		criterio.Run("type", r.Type, checkType),
		criterio.Run("separateInto", r.SeparateInto, checkSeparateInto),
		criterio.Run("repeatIntervalMinutes", r.RepeatIntervalMinutes, checkInterval),
		criterio.Run("status", r.Status, func(s domain.RoutineStatus) error {
			if s == "" {
				return nil
			}
			return checkStatus(s)
		}),
		criterio.Run("target", r, checkTarget),
	)
	if err != nil {
		return domain.Invalid("routine", r.Name, err)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in domain.RoutineInput) (domain.Routine, error) {
	if in.SeparateInto == 0 {
		in.SeparateInto = 1
	}
	draft := domain.Routine{
		Name:                  in.Name,
		Type:                  in.Type,
		Target:                in.Target,
		SeparateInto:          in.SeparateInto,
		RepeatIntervalMinutes: in.RepeatIntervalMinutes,
		Status:                in.Status,
	}
	if err := validate(draft); err != nil {
		return domain.Routine{}, err
	}

	r, err := s.store.CreateRoutine(ctx, in)
	if err != nil {
		return domain.Routine{}, fmt.Errorf("create routine: %w", err)
	}
	if err := s.regenerate(ctx, r); err != nil {
		return domain.Routine{}, err
	}
	s.log.Info("routine created", logx.String("id", r.ID), logx.String("type", string(r.Type)))
	return s.store.GetRoutine(ctx, r.ID)
}

// Update applies patch and, when the definition changed, rebuilds the
// routine's tasks and re-plans today.
func (s *Service) Update(ctx context.Context, id string, patch domain.RoutinePatch) (domain.Routine, error) {
	cur, err := s.store.GetRoutine(ctx, id)
	if err != nil {
		return domain.Routine{}, err
	}
	draft := cur
	if patch.Name != nil {
		draft.Name = *patch.Name
	}
	if patch.Type != nil {
		draft.Type = *patch.Type
	}
	if patch.Target != nil {
		draft.Target = *patch.Target
	}
	if patch.SeparateInto != nil {
		draft.SeparateInto = *patch.SeparateInto
	}
	if patch.RepeatIntervalMinutes != nil {
		draft.RepeatIntervalMinutes = patch.RepeatIntervalMinutes
	}
	if patch.Status != nil {
		draft.Status = *patch.Status
	}
	if err := validate(draft); err != nil {
		return domain.Routine{}, err
	}

	updated, err := s.store.UpdateRoutine(ctx, id, patch)
	if err != nil {
		return domain.Routine{}, fmt.Errorf("update routine: %w", err)
	}
	if patch.Name != nil || patch.Type != nil || patch.Target != nil || patch.SeparateInto != nil {
		removed, err := s.store.DeleteRoutineTasks(ctx, id)
		if err != nil {
			return domain.Routine{}, fmt.Errorf("delete routine tasks: %w", err)
		}
		s.log.Debug("routine tasks removed", logx.String("id", id), logx.Int("count", len(removed)))
		if err := s.regenerate(ctx, updated); err != nil {
			return domain.Routine{}, err
		}
	}
	return s.store.GetRoutine(ctx, id)
}

func (s *Service) regenerate(ctx context.Context, r domain.Routine) error {
	tasks, err := BuildTasks(r)
	if err != nil {
		return err
	}
	if _, err := s.store.CreateRoutineTasks(ctx, tasks); err != nil {
		return fmt.Errorf("create routine tasks: %w", err)
	}
	if s.planner == nil {
		return nil
	}
	if _, err := s.planner.PlanForDate(ctx, s.now()); err != nil {
		return fmt.Errorf("plan today: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Routine, error) {
	return s.store.GetRoutine(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Routine, error) {
	return s.store.ListRoutines(ctx)
}

// LogProgress records value against a routine task (steps walked, etc.).
func (s *Service) LogProgress(ctx context.Context, routineTaskID, value string) (domain.RoutineTaskLog, error) {
	err := criterio.ValidateStruct(
		criterio.Run("routineTaskId", routineTaskID, checkRequired),
		criterio.Run("value", value, checkRequired),
	)
	if err != nil {
		return domain.RoutineTaskLog{}, domain.Invalid("taskLog", "", err)
	}
	l, err := s.store.CreateTaskLog(ctx, routineTaskID, strings.TrimSpace(value))
	if err != nil {
		return domain.RoutineTaskLog{}, err
	}
	s.log.Debug("progress logged", logx.String("task", routineTaskID), logx.String("value", l.Value))
	return l, nil
}
