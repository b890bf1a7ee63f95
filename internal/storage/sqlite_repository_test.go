package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/remindd/internal/model"
)

func setupRepo(t *testing.T) *SQLRepository {
	t.Helper()
	return openRepoAt(t, filepath.Join(t.TempDir(), "remindd-test.db"), true)
}

func openRepoAt(t *testing.T, dbPath string, migrate bool) *SQLRepository {
	t.Helper()
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if migrate {
		if err := MigrateUp(db); err != nil {
			t.Fatalf("migrate up: %v", err)
		}
	}

	repo, err := NewSQLiteRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func parseRFC3339(t *testing.T, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

func seedUser(t *testing.T, repo *SQLRepository, id string) model.User {
	t.Helper()
	user := model.User{
		ID:                        id,
		Name:                      "Ada",
		Email:                     id + "@example.com",
		Timezone:                  "America/New_York",
		EmailNotificationsEnabled: true,
		CreatedAt:                 parseRFC3339(t, "2026-02-01T08:00:00Z"),
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func seedTask(t *testing.T, repo *SQLRepository, id, owner string, deadline time.Time) model.Task {
	t.Helper()
	task := model.Task{
		ID:          id,
		OwnerID:     owner,
		Title:       "Task " + id,
		Description: "details",
		Priority:    model.PriorityMedium,
		Status:      model.TaskInProgress,
		Deadline:    deadline,
		CreatedAt:   parseRFC3339(t, "2026-02-01T09:00:00Z"),
	}
	if err := repo.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestUserCRUD(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "user-1")

	got, err := repo.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Timezone != "America/New_York" || !got.EmailNotificationsEnabled {
		t.Fatalf("unexpected user: %#v", got)
	}

	if err := repo.SetNotifications(ctx, "user-1", false); err != nil {
		t.Fatalf("set notifications: %v", err)
	}
	if err := repo.SetTimezone(ctx, "user-1", "Asia/Tokyo"); err != nil {
		t.Fatalf("set timezone: %v", err)
	}
	got, err = repo.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Timezone != "Asia/Tokyo" || got.EmailNotificationsEnabled {
		t.Fatalf("unexpected updated user: %#v", got)
	}

	if err := repo.SetTimezone(ctx, "missing", "UTC"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetUser(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskCreateInitializesPendingReminders(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "user-1")
	deadline := parseRFC3339(t, "2026-02-10T14:00:00Z")
	seedTask(t, repo, "task-1", "user-1", deadline)

	got, err := repo.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !got.Deadline.Equal(deadline) || got.Revision != 1 {
		t.Fatalf("unexpected task: %#v", got)
	}
	for _, k := range model.ReminderKinds() {
		if got.Reminders[k] != model.ReminderPending {
			t.Fatalf("expected %s pending, got %q", k, got.Reminders[k])
		}
	}
}

func TestTryClaimIsOneShot(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "user-1")
	seedTask(t, repo, "task-1", "user-1", parseRFC3339(t, "2026-02-10T14:00:00Z"))

	claim := model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueToday}
	ok, err := repo.TryClaim(ctx, claim)
	if err != nil || !ok {
		t.Fatalf("expected first claim granted, got ok=%v err=%v", ok, err)
	}
	ok, err = repo.TryClaim(ctx, claim)
	if err != nil || ok {
		t.Fatalf("expected second claim refused, got ok=%v err=%v", ok, err)
	}

	other := model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueIn24h}
	ok, err = repo.TryClaim(ctx, other)
	if err != nil || !ok {
		t.Fatalf("expected independent kind claimable, got ok=%v err=%v", ok, err)
	}

	got, err := repo.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Reminders[model.ReminderDueToday] != model.ReminderSent || got.Reminders[model.ReminderDueWithin1h] != model.ReminderPending {
		t.Fatalf("unexpected reminder state: %#v", got.Reminders)
	}
}

func TestTryClaimRejectsStaleRevisionAndClosedTask(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "user-1")
	seedTask(t, repo, "task-1", "user-1", parseRFC3339(t, "2026-02-10T14:00:00Z"))

	if err := repo.EditDeadline(ctx, "task-1", parseRFC3339(t, "2026-02-11T14:00:00Z")); err != nil {
		t.Fatalf("edit deadline: %v", err)
	}
	ok, err := repo.TryClaim(ctx, model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueToday})
	if err != nil || ok {
		t.Fatalf("expected stale revision refused, got ok=%v err=%v", ok, err)
	}

	if err := repo.SetStatus(ctx, "task-1", model.TaskComplete); err != nil {
		t.Fatalf("set status: %v", err)
	}
	ok, err = repo.TryClaim(ctx, model.Claim{TaskID: "task-1", Revision: 2, Kind: model.ReminderDueToday})
	if err != nil || ok {
		t.Fatalf("expected completed task refused, got ok=%v err=%v", ok, err)
	}
}

func TestTryClaimConcurrentCallersOnlyOneWins(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "race.db")
	first := openRepoAt(t, dbPath, true)
	second := openRepoAt(t, dbPath, false)
	ctx := context.Background()
	seedUser(t, first, "user-1")
	seedTask(t, first, "task-1", "user-1", parseRFC3339(t, "2026-02-10T14:00:00Z"))

	claim := model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueWithin1h}
	repos := []*SQLRepository{first, second}
	results := make([]bool, len(repos))
	errs := make([]error, len(repos))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, repo := range repos {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = repo.TryClaim(ctx, claim)
		}()
	}
	close(start)
	wg.Wait()

	granted := 0
	for i := range repos {
		if errs[i] != nil {
			t.Fatalf("claim %d failed: %v", i, errs[i])
		}
		if results[i] {
			granted++
		}
	}
	if granted != 1 {
		t.Fatalf("expected exactly one granted claim, got %d", granted)
	}
}

func TestEditDeadlineResetsRemindersButUpdateDeadlineDoesNot(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "user-1")
	seedTask(t, repo, "task-1", "user-1", parseRFC3339(t, "2026-02-10T14:00:00Z"))

	if _, err := repo.TryClaim(ctx, model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueIn24h}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	moved := parseRFC3339(t, "2026-02-10T05:00:00Z")
	if err := repo.UpdateDeadline(ctx, "task-1", parseRFC3339(t, "2026-02-10T14:00:00Z"), moved); err != nil {
		t.Fatalf("update deadline: %v", err)
	}
	got, err := repo.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !got.Deadline.Equal(moved) || got.Revision != 1 || got.Reminders[model.ReminderDueIn24h] != model.ReminderSent {
		t.Fatalf("update deadline must keep reminder state and revision: %#v", got)
	}

	edited := parseRFC3339(t, "2026-02-12T14:00:00Z")
	if err := repo.EditDeadline(ctx, "task-1", edited); err != nil {
		t.Fatalf("edit deadline: %v", err)
	}
	got, err = repo.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !got.Deadline.Equal(edited) || got.Revision != 2 || got.Reminders[model.ReminderDueIn24h] != model.ReminderPending {
		t.Fatalf("edit deadline must reset reminders and bump revision: %#v", got)
	}

	if err := repo.EditDeadline(ctx, "missing", edited); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitReminderState(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "user-1")
	seedTask(t, repo, "task-1", "user-1", parseRFC3339(t, "2026-02-10T14:00:00Z"))

	if err := repo.CommitReminderState(ctx, model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueToday}, model.ReminderSent); err != nil {
		t.Fatalf("commit sent: %v", err)
	}
	if err := repo.CommitReminderState(ctx, model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueToday}, model.ReminderPending); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if err := repo.CommitReminderState(ctx, model.Claim{TaskID: "missing", Revision: 1, Kind: model.ReminderDueToday}, model.ReminderSent); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.CommitReminderState(ctx, model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderKind("Weekly")}, model.ReminderSent); !errors.Is(err, model.ErrInvalidReminderKind) {
		t.Fatalf("expected ErrInvalidReminderKind, got %v", err)
	}
}

func TestCommitReminderStateIgnoresSupersededRevision(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "user-1")
	seedTask(t, repo, "task-1", "user-1", parseRFC3339(t, "2026-02-10T14:00:00Z"))

	claim := model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueWithin1h}
	granted, err := repo.TryClaim(ctx, claim)
	if err != nil || !granted {
		t.Fatalf("expected claim granted, got %v %v", granted, err)
	}
	if err := repo.EditDeadline(ctx, "task-1", parseRFC3339(t, "2026-02-11T14:00:00Z")); err != nil {
		t.Fatalf("edit deadline: %v", err)
	}

	err = repo.CommitReminderState(ctx, claim, model.ReminderSent)
	if !errors.Is(err, model.ErrStaleClaim) {
		t.Fatalf("expected ErrStaleClaim, got %v", err)
	}
	got, err := repo.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	for _, kind := range model.ReminderKinds() {
		if got.Reminders[kind] != model.ReminderPending {
			t.Fatalf("expected %s pending on revision %d, got %#v", kind, got.Revision, got.Reminders)
		}
	}

	claim.Revision = got.Revision
	if err := repo.CommitReminderState(ctx, claim, model.ReminderSent); err != nil {
		t.Fatalf("commit on current revision: %v", err)
	}
}

func TestUpdateDeadlineRequiresPreviousValue(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "user-1")
	original := parseRFC3339(t, "2026-02-10T14:00:00Z")
	seedTask(t, repo, "task-1", "user-1", original)

	edited := parseRFC3339(t, "2026-02-12T09:00:00Z")
	if err := repo.EditDeadline(ctx, "task-1", edited); err != nil {
		t.Fatalf("edit deadline: %v", err)
	}
	err := repo.UpdateDeadline(ctx, "task-1", original, original.Add(3*time.Hour))
	if !errors.Is(err, ErrDeadlineChanged) {
		t.Fatalf("expected ErrDeadlineChanged, got %v", err)
	}
	got, err := repo.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !got.Deadline.Equal(edited) {
		t.Fatalf("owner edit overwritten: %v", got.Deadline)
	}
	if err := repo.UpdateDeadline(ctx, "missing", original, edited); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActiveTasksAndListing(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "user-1")
	seedUser(t, repo, "user-2")
	seedTask(t, repo, "late", "user-1", parseRFC3339(t, "2026-02-12T10:00:00Z"))
	seedTask(t, repo, "soon", "user-1", parseRFC3339(t, "2026-02-10T10:00:00Z"))
	seedTask(t, repo, "done", "user-1", parseRFC3339(t, "2026-02-11T10:00:00Z"))
	seedTask(t, repo, "other", "user-2", parseRFC3339(t, "2026-02-09T10:00:00Z"))

	if err := repo.SetStatus(ctx, "done", model.TaskComplete); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if _, err := repo.TryClaim(ctx, model.Claim{TaskID: "soon", Revision: 1, Kind: model.ReminderDueToday}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	active, err := repo.ActiveTasks(ctx)
	if err != nil {
		t.Fatalf("active tasks: %v", err)
	}
	if len(active) != 3 || active[0].ID != "other" || active[1].ID != "soon" || active[2].ID != "late" {
		t.Fatalf("unexpected active tasks: %#v", active)
	}
	if active[1].Reminders[model.ReminderDueToday] != model.ReminderSent {
		t.Fatalf("expected reminder state attached, got %#v", active[1].Reminders)
	}

	owned, err := repo.ListTasks(ctx, TaskListFilter{OwnerID: "user-1"})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(owned) != 3 {
		t.Fatalf("expected 3 owned tasks, got %d", len(owned))
	}

	page, err := repo.ListTasks(ctx, TaskListFilter{OwnerID: "user-1", Status: model.TaskInProgress, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "late" {
		t.Fatalf("unexpected page: %#v", page)
	}

	upcoming, err := repo.UpcomingTasks(ctx, "user-1", parseRFC3339(t, "2026-02-11T00:00:00Z"), 3)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != "late" {
		t.Fatalf("unexpected upcoming: %#v", upcoming)
	}
}

func TestDeleteCascadesReminderState(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "user-1")
	seedTask(t, repo, "task-1", "user-1", parseRFC3339(t, "2026-02-10T14:00:00Z"))
	seedTask(t, repo, "task-2", "user-1", parseRFC3339(t, "2026-02-10T15:00:00Z"))

	if err := repo.DeleteTask(ctx, "task-1"); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := repo.GetTask(ctx, "task-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.CommitReminderState(ctx, model.Claim{TaskID: "task-1", Revision: 1, Kind: model.ReminderDueToday}, model.ReminderSent); err != ErrNotFound {
		t.Fatalf("expected reminder rows removed with task, got %v", err)
	}

	if err := repo.DeleteUser(ctx, "user-1"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := repo.GetTask(ctx, "task-2"); err != ErrNotFound {
		t.Fatalf("expected user's tasks removed, got %v", err)
	}
	if err := repo.CommitReminderState(ctx, model.Claim{TaskID: "task-2", Revision: 1, Kind: model.ReminderDueToday}, model.ReminderSent); err != ErrNotFound {
		t.Fatalf("expected reminder rows removed with user, got %v", err)
	}
}

func TestMissingDeadlineRoundTrips(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "user-1")
	seedTask(t, repo, "task-1", "user-1", time.Time{})

	got, err := repo.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !got.Deadline.IsZero() {
		t.Fatalf("expected zero deadline, got %s", got.Deadline)
	}
}

func TestBindRewritesPlaceholdersForPostgres(t *testing.T) {
	pg := &SQLRepository{dialect: DialectPostgres}
	got := pg.bind(`UPDATE t SET a = ? WHERE b = ? AND c = ?`)
	if got != `UPDATE t SET a = $1 WHERE b = $2 AND c = $3` {
		t.Fatalf("unexpected rebinding: %s", got)
	}
	lite := &SQLRepository{dialect: DialectSQLite}
	if lite.bind("a = ?") != "a = ?" {
		t.Fatal("sqlite queries must not be rewritten")
	}
}
