package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sandeepkv93/remindd/internal/model"
)

const timeLayout = time.RFC3339Nano

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const taskColumns = `id, owner_id, title, description, priority, status, deadline_ms, revision, created_at`

// SQLRepository persists users, tasks and per-kind reminder flags through
// database/sql. Deadlines are stored as epoch milliseconds.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	closers []func()
}

func NewSQLiteRepository(db *sql.DB) (*SQLRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	// PRAGMAs are per connection; pin the pool to one.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return &SQLRepository{db: db, dialect: DialectSQLite}, nil
}

func OpenSQLite(path string) (*SQLRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLRepository) Dialect() Dialect {
	return r.dialect
}

func (r *SQLRepository) Close() error {
	err := r.db.Close()
	for _, fn := range r.closers {
		fn()
	}
	return err
}

func (r *SQLRepository) CreateUser(ctx context.Context, in model.User) error {
	zone := in.Timezone
	if strings.TrimSpace(zone) == "" {
		zone = model.DefaultTimezone
	}
	_, err := r.db.ExecContext(ctx, r.bind(`
		INSERT INTO users (id, name, email, timezone, email_notifications, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		in.ID, in.Name, in.Email, zone, boolInt(in.EmailNotificationsEnabled), mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLRepository) GetUser(ctx context.Context, id string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, r.bind(`
		SELECT id, name, email, timezone, email_notifications, created_at
		FROM users WHERE id = ?`), id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *SQLRepository) SetNotifications(ctx context.Context, userID string, enabled bool) error {
	res, err := r.db.ExecContext(ctx, r.bind(`UPDATE users SET email_notifications = ? WHERE id = ?`), boolInt(enabled), userID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLRepository) SetTimezone(ctx context.Context, userID, zone string) error {
	res, err := r.db.ExecContext(ctx, r.bind(`UPDATE users SET timezone = ? WHERE id = ?`), zone, userID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.bind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// CreateTask inserts the task with every reminder kind pending.
func (r *SQLRepository) CreateTask(ctx context.Context, in model.Task) error {
	revision := in.Revision
	if revision <= 0 {
		revision = 1
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.bind(`
			INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			in.ID, in.OwnerID, in.Title, in.Description, string(in.Priority), string(in.Status),
			nullDeadline(in.Deadline), revision, mustTime(in.CreatedAt),
		); err != nil {
			return err
		}
		for _, kind := range model.ReminderKinds() {
			if _, err := tx.ExecContext(ctx, r.bind(`
				INSERT INTO task_reminders (task_id, kind, status) VALUES (?, ?, ?)`),
				in.ID, string(kind), string(model.ReminderPending),
			); err != nil {
				return fmt.Errorf("init reminder %s: %w", kind, err)
			}
		}
		return nil
	})
}

func (r *SQLRepository) GetTask(ctx context.Context, id string) (model.Task, error) {
	row := r.db.QueryRowContext(ctx, r.bind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, ErrNotFound
		}
		return model.Task{}, err
	}
	states, err := r.reminderStates(ctx, `t.id = ?`, id)
	if err != nil {
		return model.Task{}, err
	}
	task.Reminders = withDefaults(states[task.ID])
	return task, nil
}

func (r *SQLRepository) SetStatus(ctx context.Context, taskID string, status model.TaskStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidStatus, status)
	}
	res, err := r.db.ExecContext(ctx, r.bind(`UPDATE tasks SET status = ? WHERE id = ?`), string(status), taskID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// EditDeadline records an owner's deadline change. It starts a new reminder
// schedule: the revision moves forward and every kind returns to Pending.
func (r *SQLRepository) EditDeadline(ctx context.Context, taskID string, deadline time.Time) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.bind(`
			UPDATE tasks SET deadline_ms = ?, revision = revision + 1 WHERE id = ?`),
			nullDeadline(deadline), taskID,
		)
		if err != nil {
			return err
		}
		if err := checkRowsAffected(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, r.bind(`
			UPDATE task_reminders SET status = ?, claimed_at = NULL, sent_at = NULL WHERE task_id = ?`),
			string(model.ReminderPending), taskID,
		)
		return err
	})
}

// UpdateDeadline moves the stored instant from one value to another without
// touching reminder state. It fails with ErrDeadlineChanged when the stored
// deadline is no longer from.
func (r *SQLRepository) UpdateDeadline(ctx context.Context, taskID string, from, to time.Time) error {
	query := `UPDATE tasks SET deadline_ms = ? WHERE id = ? AND deadline_ms = ?`
	args := []any{nullDeadline(to), taskID, nullDeadline(from)}
	if from.IsZero() {
		query = `UPDATE tasks SET deadline_ms = ? WHERE id = ? AND deadline_ms IS NULL`
		args = args[:2]
	}
	res, err := r.db.ExecContext(ctx, r.bind(query), args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.missingOr(ctx, taskID, ErrDeadlineChanged)
	}
	return nil
}

func (r *SQLRepository) DeleteTask(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.bind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLRepository) ListTasks(ctx context.Context, filter TaskListFilter) ([]model.Task, error) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.OwnerID != "" {
		clauses = append(clauses, "t.owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "t.status = ?")
		args = append(args, string(filter.Status))
	}
	where := "1 = 1"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE ` + where + ` ORDER BY t.deadline_ms ASC, t.created_at ASC`
	pageArgs := append([]any(nil), args...)
	query += applyPagination(&pageArgs, filter.Limit, filter.Offset)
	return r.queryTasks(ctx, query, pageArgs, where, args)
}

// UpcomingTasks lists the owner's open tasks due at or after from, soonest first.
func (r *SQLRepository) UpcomingTasks(ctx context.Context, ownerID string, from time.Time, limit int) ([]model.Task, error) {
	where := "t.owner_id = ? AND t.status = ? AND t.deadline_ms >= ?"
	args := []any{ownerID, string(model.TaskInProgress), from.UnixMilli()}
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE ` + where + ` ORDER BY t.deadline_ms ASC`
	pageArgs := append([]any(nil), args...)
	query += applyPagination(&pageArgs, limit, 0)
	return r.queryTasks(ctx, query, pageArgs, where, args)
}

// ActiveTasks lists every in-progress task with its reminder state.
func (r *SQLRepository) ActiveTasks(ctx context.Context) ([]model.Task, error) {
	where := "t.status = ?"
	args := []any{string(model.TaskInProgress)}
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE ` + where + ` ORDER BY t.deadline_ms ASC`
	return r.queryTasks(ctx, query, args, where, args)
}

// TryClaim atomically moves (task, kind) from Pending to Sent. It only
// succeeds while the task is still open and still on the schedule revision
// the caller classified against.
func (r *SQLRepository) TryClaim(ctx context.Context, claim model.Claim) (bool, error) {
	if err := claim.Validate(); err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, r.bind(`
		UPDATE task_reminders
		SET status = ?, claimed_at = ?
		WHERE task_id = ? AND kind = ? AND status = ?
		  AND EXISTS (SELECT 1 FROM tasks WHERE id = ? AND revision = ? AND status = ?)`),
		string(model.ReminderSent), mustTime(time.Now()),
		claim.TaskID, string(claim.Kind), string(model.ReminderPending),
		claim.TaskID, claim.Revision, string(model.TaskInProgress),
	)
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", claim.TaskID, claim.Kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", claim.TaskID, claim.Kind, err)
	}
	return affected == 1, nil
}

// CommitReminderState records the outcome of a granted claim. The write only
// lands while the task is still on the claimed revision; otherwise it returns
// model.ErrStaleClaim and the newer schedule keeps its Pending flags.
func (r *SQLRepository) CommitReminderState(ctx context.Context, claim model.Claim, status model.ReminderStatus) error {
	if err := claim.Validate(); err != nil {
		return err
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidReminderStatus, status)
	}
	if status == model.ReminderPending {
		return ErrIllegalTransition
	}
	res, err := r.db.ExecContext(ctx, r.bind(`
		UPDATE task_reminders SET status = ?, sent_at = COALESCE(sent_at, ?)
		WHERE task_id = ? AND kind = ?
		  AND EXISTS (SELECT 1 FROM tasks WHERE id = ? AND revision = ?)`),
		string(status), mustTime(time.Now()), claim.TaskID, string(claim.Kind),
		claim.TaskID, claim.Revision,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.missingOr(ctx, claim.TaskID, fmt.Errorf("commit %s/%s rev %d: %w",
			claim.TaskID, claim.Kind, claim.Revision, model.ErrStaleClaim))
	}
	return nil
}

// missingOr returns ErrNotFound when the task is gone and otherwise err.
func (r *SQLRepository) missingOr(ctx context.Context, taskID string, err error) error {
	var one int
	row := r.db.QueryRowContext(ctx, r.bind(`SELECT 1 FROM tasks WHERE id = ?`), taskID)
	if scanErr := row.Scan(&one); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return ErrNotFound
		}
		return scanErr
	}
	return err
}

func (r *SQLRepository) queryTasks(ctx context.Context, query string, args []any, where string, whereArgs []any) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, r.bind(query), args...)
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			_ = rows.Close()
			return nil, scanErr
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	states, err := r.reminderStates(ctx, where, whereArgs...)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Reminders = withDefaults(states[out[i].ID])
	}
	return out, nil
}

func (r *SQLRepository) reminderStates(ctx context.Context, where string, args ...any) (map[string]model.ReminderState, error) {
	rows, err := r.db.QueryContext(ctx, r.bind(`
		SELECT r.task_id, r.kind, r.status
		FROM task_reminders r JOIN tasks t ON t.id = r.task_id
		WHERE `+where), args...)
	if err != nil {
		return nil, fmt.Errorf("load reminder state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.ReminderState)
	for rows.Next() {
		var taskID, kind, status string
		if err := rows.Scan(&taskID, &kind, &status); err != nil {
			return nil, err
		}
		state, ok := out[taskID]
		if !ok {
			state = make(model.ReminderState, 3)
			out[taskID] = state
		}
		state[model.ReminderKind(kind)] = model.ReminderStatus(status)
	}
	return out, rows.Err()
}

func (r *SQLRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// bind rewrites ? placeholders to $n for Postgres.
func (r *SQLRepository) bind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func withDefaults(state model.ReminderState) model.ReminderState {
	out := model.NewReminderState()
	for k, v := range state {
		out[k] = v
	}
	return out
}

func nullDeadline(v time.Time) any {
	if v.IsZero() {
		return nil
	}
	return v.UnixMilli()
}

func mustTime(v time.Time) string {
	return v.UTC().Format(timeLayout)
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(timeLayout, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var out model.Task
	var priority, status, created string
	var deadline sql.NullInt64
	if err := s.Scan(&out.ID, &out.OwnerID, &out.Title, &out.Description, &priority, &status, &deadline, &out.Revision, &created); err != nil {
		return model.Task{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return model.Task{}, err
	}
	out.Priority = model.Priority(priority)
	out.Status = model.TaskStatus(status)
	if deadline.Valid {
		out.Deadline = time.UnixMilli(deadline.Int64).UTC()
	}
	out.CreatedAt = createdAt
	return out, nil
}

func scanUser(s scanner) (model.User, error) {
	var out model.User
	var enabled int
	var created string
	if err := s.Scan(&out.ID, &out.Name, &out.Email, &out.Timezone, &enabled, &created); err != nil {
		return model.User{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return model.User{}, err
	}
	out.EmailNotificationsEnabled = enabled == 1
	out.CreatedAt = createdAt
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
