package storage

import (
	"cmp"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"agendaengine/internal/domain"
	logx "agendaengine/pkg/logx"
)

//go:embed migrations.sql
var migrationsSQL string

type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	opts options
}

func openSQLite(cfg Config, log logx.Logger, opts ...Option) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log, opts: buildOptions(opts)}
	if _, err := db.ExecContext(context.Background(), migrationsSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) now() time.Time { return s.opts.now() }

func ms(t time.Time) int64 { return t.UnixMilli() }

func fromMS(v int64) time.Time { return time.UnixMilli(v).UTC() }

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ms(*t)
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return domain.IntPtr(int(v.Int64))
}

type scanner interface {
	Scan(dest ...any) error
}

// ---- agendas ----

func scanAgenda(row scanner) (domain.Agenda, error) {
	var (
		a                        domain.Agenda
		date, created, updatedAt int64
	)
	if err := row.Scan(&a.ID, &date, &created, &updatedAt); err != nil {
		return domain.Agenda{}, err
	}
	a.Date, a.CreatedAt, a.UpdatedAt = fromMS(date), fromMS(created), fromMS(updatedAt)
	return a, nil
}

func (s *sqliteStore) AgendaByDate(ctx context.Context, date time.Time) (domain.Agenda, bool, error) {
	a, err := scanAgenda(s.db.QueryRowContext(ctx,
		`SELECT id, date, created_at, updated_at FROM agendas WHERE date = ?`, ms(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Agenda{}, false, nil
	}
	if err != nil {
		return domain.Agenda{}, false, fmt.Errorf("agenda by date: %w", err)
	}
	return a, true, nil
}

func (s *sqliteStore) CreateAgenda(ctx context.Context, date time.Time) (domain.Agenda, error) {
	now := ms(s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agendas(id, date, created_at, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(date) DO NOTHING`,
		s.opts.newID(), ms(date), now, now)
	if err != nil {
		return domain.Agenda{}, fmt.Errorf("create agenda: %w", err)
	}
	a, ok, err := s.AgendaByDate(ctx, date)
	if err != nil {
		return domain.Agenda{}, err
	}
	if !ok {
		return domain.Agenda{}, fmt.Errorf("create agenda: row missing after insert")
	}
	return a, nil
}

func (s *sqliteStore) AgendasInRange(ctx context.Context, start, end time.Time) ([]domain.AgendaWithItems, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, created_at, updated_at FROM agendas WHERE date >= ? AND date <= ? ORDER BY date`,
		ms(start), ms(end))
	if err != nil {
		return nil, fmt.Errorf("agendas in range: %w", err)
	}
	var agendas []domain.Agenda
	for rows.Next() {
		a, err := scanAgenda(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("agendas in range: %w", err)
		}
		agendas = append(agendas, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	out := make([]domain.AgendaWithItems, 0, len(agendas))
	for _, a := range agendas {
		items, err := s.ListItemsByAgenda(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.AgendaWithItems{Agenda: a, Items: items})
	}
	return out, nil
}

// ---- items ----

const itemSelect = `SELECT i.id, i.agenda_id, i.task_id, i.routine_task_id, i.type, i.status,
	i.start_at, i.duration, i.position, i.notes, i.notification_id, i.created_at, i.updated_at,
	t.title, rt.name, rt.target, rt.routine_id, r.name, r.type
FROM agenda_items i
LEFT JOIN tasks t ON t.id = i.task_id
LEFT JOIN routine_tasks rt ON rt.id = i.routine_task_id
LEFT JOIN routines r ON r.id = rt.routine_id`

func scanItem(row scanner) (domain.AgendaItem, error) {
	var (
		it                                    domain.AgendaItem
		taskID, routineTaskID, notificationID sql.NullString
		startAt, duration                     sql.NullInt64
		created, updated                      int64
		taskTitle, rtName, rtTarget, rtRoutine sql.NullString
		routineName, routineType              sql.NullString
	)
	err := row.Scan(&it.ID, &it.AgendaID, &taskID, &routineTaskID, &it.Type, &it.Status,
		&startAt, &duration, &it.Position, &it.Notes, &notificationID, &created, &updated,
		&taskTitle, &rtName, &rtTarget, &rtRoutine, &routineName, &routineType)
	if err != nil {
		return domain.AgendaItem{}, err
	}
	it.TaskID = taskID.String
	it.RoutineTaskID = routineTaskID.String
	it.NotificationID = notificationID.String
	if startAt.Valid {
		it.StartAt = domain.TimePtr(fromMS(startAt.Int64))
	}
	it.Duration = intPtr(duration)
	it.CreatedAt, it.UpdatedAt = fromMS(created), fromMS(updated)
	if taskTitle.Valid {
		it.Task = &domain.TaskRef{ID: it.TaskID, Title: taskTitle.String}
	}
	if rtName.Valid {
		it.RoutineTask = &domain.RoutineTaskRef{
			ID:          it.RoutineTaskID,
			Name:        rtName.String,
			Target:      rtTarget.String,
			RoutineID:   rtRoutine.String,
			RoutineName: routineName.String,
			RoutineType: domain.RoutineType(routineType.String),
		}
	}
	return it, nil
}

func (s *sqliteStore) queryItems(ctx context.Context, where string, args ...any) ([]domain.AgendaItem, error) {
	rows, err := s.db.QueryContext(ctx, itemSelect+" "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.AgendaItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetItem(ctx context.Context, id string) (domain.AgendaItem, error) {
	items, err := s.queryItems(ctx, `WHERE i.id = ?`, id)
	if err != nil {
		return domain.AgendaItem{}, fmt.Errorf("get item: %w", err)
	}
	if len(items) == 0 {
		return domain.AgendaItem{}, domain.NotFound("agenda item", id)
	}
	return items[0], nil
}

func (s *sqliteStore) ListItemsByAgenda(ctx context.Context, agendaID string) ([]domain.AgendaItem, error) {
	items, err := s.queryItems(ctx, `WHERE i.agenda_id = ? ORDER BY i.position, i.created_at, i.rowid`, agendaID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *sqliteStore) ListExpirable(ctx context.Context) ([]domain.AgendaItem, error) {
	items, err := s.queryItems(ctx,
		`WHERE i.status = ? AND i.start_at IS NOT NULL AND i.duration IS NOT NULL ORDER BY i.start_at, i.rowid`,
		string(domain.ItemPending))
	if err != nil {
		return nil, fmt.Errorf("list expirable: %w", err)
	}
	return items, nil
}

func (s *sqliteStore) agendaExists(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM agendas WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound("agenda", id)
	}
	return err
}

func (s *sqliteStore) CreateItem(ctx context.Context, agendaID string, in domain.ItemInput) (domain.AgendaItem, error) {
	if err := validateItemInput(in); err != nil {
		return domain.AgendaItem{}, err
	}
	if err := s.agendaExists(ctx, s.db, agendaID); err != nil {
		return domain.AgendaItem{}, err
	}
	id := s.opts.newID()
	now := ms(s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agenda_items(id, agenda_id, task_id, routine_task_id, type, status, start_at, duration,
		 position, notes, notification_id, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, agendaID, nullStr(in.TaskID), nullStr(in.RoutineTaskID),
		string(cmp.Or(in.Type, domain.ItemRegular)), string(cmp.Or(in.Status, domain.ItemPending)),
		nullTime(in.StartAt), nullInt(in.Duration), in.Position, in.Notes, nullStr(in.NotificationID), now, now)
	if err != nil {
		return domain.AgendaItem{}, fmt.Errorf("create item: %w", err)
	}
	return s.GetItem(ctx, id)
}

func (s *sqliteStore) UpdateItem(ctx context.Context, id string, p domain.ItemPatch) (domain.AgendaItem, error) {
	cur, err := s.GetItem(ctx, id)
	if err != nil {
		return domain.AgendaItem{}, err
	}
	if p.AgendaID != nil {
		if err := s.agendaExists(ctx, s.db, *p.AgendaID); err != nil {
			return domain.AgendaItem{}, err
		}
	}
	next := applyItemPatch(cloneItem(cur), p)
	_, err = s.db.ExecContext(ctx,
		`UPDATE agenda_items SET agenda_id = ?, status = ?, start_at = ?, duration = ?, position = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		next.AgendaID, string(next.Status), nullTime(next.StartAt), nullInt(next.Duration), next.Position, next.Notes,
		ms(s.now()), id)
	if err != nil {
		return domain.AgendaItem{}, fmt.Errorf("update item: %w", err)
	}
	return s.GetItem(ctx, id)
}

func marshalValue(v map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalValue(v sql.NullString) (map[string]any, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var out map[string]any
	err := json.Unmarshal([]byte(v.String), &out)
	return out, err
}

func (s *sqliteStore) AppendItemLog(ctx context.Context, l domain.AgendaItemLog) (domain.AgendaItemLog, error) {
	if _, err := s.GetItem(ctx, l.AgendaItemID); err != nil {
		return domain.AgendaItemLog{}, err
	}
	if l.ID == "" {
		l.ID = s.opts.newID()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	prev, err := marshalValue(l.PreviousValue)
	if err != nil {
		return domain.AgendaItemLog{}, fmt.Errorf("append item log: %w", err)
	}
	next, err := marshalValue(l.NewValue)
	if err != nil {
		return domain.AgendaItemLog{}, fmt.Errorf("append item log: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agenda_item_logs(id, agenda_item_id, type, previous_value, new_value, notes, created_at)
		 VALUES(?,?,?,?,?,?,?)`,
		l.ID, l.AgendaItemID, string(l.Type), prev, next, l.Notes, ms(l.CreatedAt))
	if err != nil {
		return domain.AgendaItemLog{}, fmt.Errorf("append item log: %w", err)
	}
	return l, nil
}

func (s *sqliteStore) ListItemLogs(ctx context.Context, itemID string) ([]domain.AgendaItemLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agenda_item_id, type, previous_value, new_value, notes, created_at
		 FROM agenda_item_logs WHERE agenda_item_id = ? ORDER BY created_at, rowid`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list item logs: %w", err)
	}
	defer rows.Close()
	var out []domain.AgendaItemLog
	for rows.Next() {
		var (
			l          domain.AgendaItemLog
			prev, next sql.NullString
			created    int64
		)
		if err := rows.Scan(&l.ID, &l.AgendaItemID, &l.Type, &prev, &next, &l.Notes, &created); err != nil {
			return nil, fmt.Errorf("list item logs: %w", err)
		}
		if l.PreviousValue, err = unmarshalValue(prev); err != nil {
			return nil, fmt.Errorf("list item logs: %w", err)
		}
		if l.NewValue, err = unmarshalValue(next); err != nil {
			return nil, fmt.Errorf("list item logs: %w", err)
		}
		l.CreatedAt = fromMS(created)
		out = append(out, l)
	}
	return out, rows.Err()
}

// ---- tasks ----

func (s *sqliteStore) CreateTask(ctx context.Context, title string) (domain.TaskRef, error) {
	t := domain.TaskRef{ID: s.opts.newID(), Title: title}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO tasks(id, title) VALUES(?,?)`, t.ID, t.Title); err != nil {
		return domain.TaskRef{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// ---- routines ----

const routineSelect = `SELECT id, name, type, target, separate_into, repeat_interval_minutes, status, created_at, updated_at FROM routines`

func scanRoutine(row scanner) (domain.Routine, error) {
	var (
		r                domain.Routine
		repeat           sql.NullInt64
		created, updated int64
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Type, &r.Target, &r.SeparateInto, &repeat, &r.Status, &created, &updated); err != nil {
		return domain.Routine{}, err
	}
	r.RepeatIntervalMinutes = intPtr(repeat)
	r.CreatedAt, r.UpdatedAt = fromMS(created), fromMS(updated)
	return r, nil
}

func (s *sqliteStore) routineTasks(ctx context.Context, routineID string) ([]domain.RoutineTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, routine_id, name, target, created_at FROM routine_tasks WHERE routine_id = ? ORDER BY created_at, rowid`,
		routineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.RoutineTask{}
	for rows.Next() {
		var (
			t       domain.RoutineTask
			created int64
		)
		if err := rows.Scan(&t.ID, &t.RoutineID, &t.Name, &t.Target, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = fromMS(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) queryRoutines(ctx context.Context, where string, args ...any) ([]domain.Routine, error) {
	rows, err := s.db.QueryContext(ctx, routineSelect+" "+where, args...)
	if err != nil {
		return nil, err
	}
	var out []domain.Routine
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	// Tasks are loaded after the cursor is closed: the pool has one connection.
	for i := range out {
		if out[i].Tasks, err = s.routineTasks(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *sqliteStore) CreateRoutine(ctx context.Context, in domain.RoutineInput) (domain.Routine, error) {
	id := s.opts.newID()
	now := ms(s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO routines(id, name, type, target, separate_into, repeat_interval_minutes, status, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		id, in.Name, string(in.Type), in.Target, max(1, in.SeparateInto), nullInt(in.RepeatIntervalMinutes),
		string(cmp.Or(in.Status, domain.RoutineActive)), now, now)
	if err != nil {
		return domain.Routine{}, fmt.Errorf("create routine: %w", err)
	}
	return s.GetRoutine(ctx, id)
}

func (s *sqliteStore) UpdateRoutine(ctx context.Context, id string, p domain.RoutinePatch) (domain.Routine, error) {
	cur, err := s.GetRoutine(ctx, id)
	if err != nil {
		return domain.Routine{}, err
	}
	next := applyRoutinePatch(cur, p)
	_, err = s.db.ExecContext(ctx,
		`UPDATE routines SET name = ?, type = ?, target = ?, separate_into = ?, repeat_interval_minutes = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		next.Name, string(next.Type), next.Target, next.SeparateInto, nullInt(next.RepeatIntervalMinutes),
		string(next.Status), ms(s.now()), id)
	if err != nil {
		return domain.Routine{}, fmt.Errorf("update routine: %w", err)
	}
	return s.GetRoutine(ctx, id)
}

func (s *sqliteStore) GetRoutine(ctx context.Context, id string) (domain.Routine, error) {
	rs, err := s.queryRoutines(ctx, `WHERE id = ?`, id)
	if err != nil {
		return domain.Routine{}, fmt.Errorf("get routine: %w", err)
	}
	if len(rs) == 0 {
		return domain.Routine{}, domain.NotFound("routine", id)
	}
	return rs[0], nil
}

func (s *sqliteStore) ListRoutines(ctx context.Context) ([]domain.Routine, error) {
	rs, err := s.queryRoutines(ctx, `ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	return rs, nil
}

func (s *sqliteStore) ActiveRoutines(ctx context.Context) ([]domain.Routine, error) {
	rs, err := s.queryRoutines(ctx, `WHERE status = ? ORDER BY created_at, id`, string(domain.RoutineActive))
	if err != nil {
		return nil, fmt.Errorf("active routines: %w", err)
	}
	return rs, nil
}

func (s *sqliteStore) CreateRoutineTasks(ctx context.Context, in []domain.RoutineTaskInput) ([]domain.RoutineTask, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create routine tasks: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	out := make([]domain.RoutineTask, 0, len(in))
	for _, t := range in {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM routines WHERE id = ?`, t.RoutineID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, domain.NotFound("routine", t.RoutineID)
			}
			return nil, fmt.Errorf("create routine tasks: %w", err)
		}
		rt := domain.RoutineTask{ID: s.opts.newID(), RoutineID: t.RoutineID, Name: t.Name, Target: t.Target, CreatedAt: fromMS(ms(now))}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO routine_tasks(id, routine_id, name, target, created_at) VALUES(?,?,?,?,?)`,
			rt.ID, rt.RoutineID, rt.Name, rt.Target, ms(now)); err != nil {
			return nil, fmt.Errorf("create routine tasks: %w", err)
		}
		out = append(out, rt)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create routine tasks: %w", err)
	}
	return out, nil
}

func (s *sqliteStore) DeleteRoutineTasks(ctx context.Context, routineID string) ([]string, error) {
	tasks, err := s.routineTasks(ctx, routineID)
	if err != nil {
		return nil, fmt.Errorf("delete routine tasks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM routine_tasks WHERE routine_id = ?`, routineID); err != nil {
		return nil, fmt.Errorf("delete routine tasks: %w", err)
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (s *sqliteStore) CreateTaskLog(ctx context.Context, routineTaskID, value string) (domain.RoutineTaskLog, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM routine_tasks WHERE id = ?`, routineTaskID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoutineTaskLog{}, domain.NotFound("routine task", routineTaskID)
	}
	if err != nil {
		return domain.RoutineTaskLog{}, fmt.Errorf("create task log: %w", err)
	}
	l := domain.RoutineTaskLog{ID: s.opts.newID(), RoutineTaskID: routineTaskID, Value: value, CreatedAt: fromMS(ms(s.now()))}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO routine_task_logs(id, routine_task_id, value, created_at) VALUES(?,?,?,?)`,
		l.ID, l.RoutineTaskID, l.Value, ms(l.CreatedAt)); err != nil {
		return domain.RoutineTaskLog{}, fmt.Errorf("create task log: %w", err)
	}
	return l, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s *sqliteStore) TaskLogs(ctx context.Context, taskIDs []string, from, to time.Time) ([]domain.RoutineTaskLog, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(taskIDs)+2)
	for _, id := range taskIDs {
		args = append(args, id)
	}
	args = append(args, ms(from), ms(to))
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, routine_task_id, value, created_at FROM routine_task_logs
		 WHERE routine_task_id IN (`+placeholders(len(taskIDs))+`) AND created_at >= ? AND created_at <= ?
		 ORDER BY created_at, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("task logs: %w", err)
	}
	defer rows.Close()
	var out []domain.RoutineTaskLog
	for rows.Next() {
		var (
			l       domain.RoutineTaskLog
			created int64
		)
		if err := rows.Scan(&l.ID, &l.RoutineTaskID, &l.Value, &created); err != nil {
			return nil, fmt.Errorf("task logs: %w", err)
		}
		l.CreatedAt = fromMS(created)
		out = append(out, l)
	}
	return out, rows.Err()
}

// ---- alarm plans ----

const alarmSelect = `SELECT id, routine_task_id, type, target_at, status, repeat_interval_minutes, metadata, created_at, updated_at FROM alarm_plans`

func scanAlarm(row scanner) (domain.AlarmPlan, error) {
	var (
		p                        domain.AlarmPlan
		target, created, updated int64
		repeat                   sql.NullInt64
		metadata                 string
	)
	if err := row.Scan(&p.ID, &p.RoutineTaskID, &p.Type, &target, &p.Status, &repeat, &metadata, &created, &updated); err != nil {
		return domain.AlarmPlan{}, err
	}
	if err := json.Unmarshal([]byte(metadata), &p.Metadata); err != nil {
		return domain.AlarmPlan{}, fmt.Errorf("alarm metadata: %w", err)
	}
	p.TargetAt, p.CreatedAt, p.UpdatedAt = fromMS(target), fromMS(created), fromMS(updated)
	p.RepeatIntervalMinutes = intPtr(repeat)
	return p, nil
}

func alarmWhere(f domain.AlarmPlanFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.RoutineTaskID != "" {
		clauses = append(clauses, "routine_task_id = ?")
		args = append(args, f.RoutineTaskID)
	}
	if len(f.Types) > 0 {
		clauses = append(clauses, "type IN ("+placeholders(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if !f.TargetFrom.IsZero() {
		clauses = append(clauses, "target_at >= ?")
		args = append(args, ms(f.TargetFrom))
	}
	if !f.TargetTo.IsZero() {
		clauses = append(clauses, "target_at <= ?")
		args = append(args, ms(f.TargetTo))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (s *sqliteStore) queryAlarms(ctx context.Context, f domain.AlarmPlanFilter, suffix string) ([]domain.AlarmPlan, error) {
	where, args := alarmWhere(f)
	rows, err := s.db.QueryContext(ctx, alarmSelect+" "+where+" "+suffix, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.AlarmPlan
	for rows.Next() {
		p, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CreateAlarmPlan(ctx context.Context, in domain.AlarmPlanInput) (domain.AlarmPlan, error) {
	md, err := json.Marshal(in.Metadata)
	if err != nil {
		return domain.AlarmPlan{}, fmt.Errorf("create alarm plan: %w", err)
	}
	now := fromMS(ms(s.now()))
	p := domain.AlarmPlan{
		ID:                    s.opts.newID(),
		RoutineTaskID:         in.RoutineTaskID,
		Type:                  in.Type,
		TargetAt:              fromMS(ms(in.TargetAt)),
		Status:                cmp.Or(in.Status, domain.AlarmPending),
		RepeatIntervalMinutes: clonePtr(in.RepeatIntervalMinutes),
		Metadata:              cloneMetadata(in.Metadata),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alarm_plans(id, routine_task_id, type, target_at, status, repeat_interval_minutes, metadata, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		p.ID, p.RoutineTaskID, string(p.Type), ms(p.TargetAt), string(p.Status), nullInt(p.RepeatIntervalMinutes),
		string(md), ms(now), ms(now))
	if err != nil {
		return domain.AlarmPlan{}, fmt.Errorf("create alarm plan: %w", err)
	}
	return p, nil
}

func (s *sqliteStore) FindAlarmPlan(ctx context.Context, f domain.AlarmPlanFilter) (domain.AlarmPlan, bool, error) {
	plans, err := s.queryAlarms(ctx, f, "ORDER BY created_at DESC, rowid DESC LIMIT 1")
	if err != nil {
		return domain.AlarmPlan{}, false, fmt.Errorf("find alarm plan: %w", err)
	}
	if len(plans) == 0 {
		return domain.AlarmPlan{}, false, nil
	}
	return plans[0], true, nil
}

func (s *sqliteStore) ListAlarmPlans(ctx context.Context, f domain.AlarmPlanFilter) ([]domain.AlarmPlan, error) {
	plans, err := s.queryAlarms(ctx, f, "ORDER BY target_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("list alarm plans: %w", err)
	}
	return plans, nil
}

func (s *sqliteStore) UpdateAlarmStatus(ctx context.Context, id string, status domain.AlarmStatus) (domain.AlarmPlan, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE alarm_plans SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), ms(s.now()), id)
	if err != nil {
		return domain.AlarmPlan{}, fmt.Errorf("update alarm status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.AlarmPlan{}, domain.NotFound("alarm plan", id)
	}
	return s.alarmByID(ctx, id)
}

func (s *sqliteStore) alarmByID(ctx context.Context, id string) (domain.AlarmPlan, error) {
	p, err := scanAlarm(s.db.QueryRowContext(ctx, alarmSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AlarmPlan{}, domain.NotFound("alarm plan", id)
	}
	if err != nil {
		return domain.AlarmPlan{}, fmt.Errorf("get alarm plan: %w", err)
	}
	return p, nil
}
