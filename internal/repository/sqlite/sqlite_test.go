package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/history-api/internal/apperror"
	"github.com/sakif/history-api/internal/model"
	"github.com/sakif/history-api/internal/repository"
)

// newTestDB returns a migrated in-memory database that is closed when the
// test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := New(ctx, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func ensureTestUser(t *testing.T, db *DB, uid string) {
	t.Helper()
	if err := db.EnsureUser(context.Background(), uid, nil); err != nil {
		t.Fatalf("failed to ensure user %s: %v", uid, err)
	}
}

func createTestHistory(t *testing.T, db *DB, uid string, at time.Time, value string) *model.History {
	t.Helper()
	h := &model.History{
		UserID:   uid,
		Datetime: at,
		Value:    decimal.RequireFromString(value),
	}
	if err := db.CreateHistory(context.Background(), h); err != nil {
		t.Fatalf("failed to create test history: %v", err)
	}
	return h
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 10, 30, 0, 0, time.UTC)
}

// =========================================================================
// SCHEMA
// =========================================================================

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

// =========================================================================
// USERS
// =========================================================================

func TestEnsureUser_TwiceIsNoop(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	email := "ada@example.com"

	if err := db.EnsureUser(ctx, "u1", &email); err != nil {
		t.Fatalf("first EnsureUser() error = %v", err)
	}
	other := "changed@example.com"
	if err := db.EnsureUser(ctx, "u1", &other); err != nil {
		t.Fatalf("second EnsureUser() error = %v", err)
	}

	u, err := db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.Email == nil || *u.Email != email {
		t.Errorf("Email = %v, want %q (first insert kept)", u.Email, email)
	}
	if u.DisplayName != nil {
		t.Errorf("DisplayName = %v, want nil", *u.DisplayName)
	}
	if u.CreatedAt == nil || u.UpdatedAt == nil {
		t.Error("EnsureUser() did not set timestamps")
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUser(context.Background(), "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUser() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// HISTORIES
// =========================================================================

func TestCreateHistory(t *testing.T) {
	db := newTestDB(t)
	ensureTestUser(t, db, "u1")

	h := createTestHistory(t, db, "u1", day(15), "12.345")

	if h.ID == "" {
		t.Error("CreateHistory() did not set ID")
	}
	if h.CreatedAt == nil || h.UpdatedAt == nil {
		t.Error("CreateHistory() did not set timestamps")
	}
	if !h.Value.Equal(decimal.RequireFromString("12.35")) {
		t.Errorf("Value = %s, want 12.35 (rounded to storage precision)", h.Value)
	}
}

func TestCreateHistory_UnknownOwnerFails(t *testing.T) {
	db := newTestDB(t)

	h := &model.History{UserID: "nobody", Datetime: day(1), Value: decimal.NewFromInt(1)}
	if err := db.CreateHistory(context.Background(), h); err == nil {
		t.Fatal("CreateHistory() should fail when the owner row does not exist")
	}
}

func TestListHistories_OrderAndPaging(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ensureTestUser(t, db, "u1")
	ensureTestUser(t, db, "u2")

	createTestHistory(t, db, "u1", day(2), "2")
	createTestHistory(t, db, "u1", day(1), "1")
	createTestHistory(t, db, "u1", day(3), "3")
	createTestHistory(t, db, "u2", day(4), "4")

	desc, err := db.ListHistories(ctx, "u1", repository.ListOptions{Limit: 10, Order: repository.OrderDesc})
	if err != nil {
		t.Fatalf("ListHistories() error = %v", err)
	}
	if len(desc) != 3 {
		t.Fatalf("len = %d, want 3 (other owners excluded)", len(desc))
	}
	for i, want := range []time.Time{day(3), day(2), day(1)} {
		if !desc[i].Datetime.Equal(want) {
			t.Errorf("desc[%d].Datetime = %v, want %v", i, desc[i].Datetime, want)
		}
	}

	page, err := db.ListHistories(ctx, "u1", repository.ListOptions{Limit: 1, Offset: 1, Order: repository.OrderAsc})
	if err != nil {
		t.Fatalf("ListHistories() error = %v", err)
	}
	if len(page) != 1 || !page[0].Datetime.Equal(day(2)) {
		t.Errorf("asc page = %+v, want the day-2 record", page)
	}

	empty, err := db.ListHistories(ctx, "u1", repository.ListOptions{Limit: 10, Offset: 50, Order: repository.OrderAsc})
	if err != nil {
		t.Fatalf("ListHistories() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("offset past end = %v, want empty non-nil slice", empty)
	}
}

func TestUpdateHistory_PartialPatch(t *testing.T) {
	db := newTestDB(t)
	ensureTestUser(t, db, "u1")
	original := createTestHistory(t, db, "u1", day(15), "10")

	time.Sleep(2 * time.Millisecond)
	value := decimal.NewFromInt(99)
	updated, err := db.UpdateHistory(context.Background(), original.ID, "u1", model.HistoryPatch{Value: &value})
	if err != nil {
		t.Fatalf("UpdateHistory() error = %v", err)
	}

	if !updated.Value.Equal(value) {
		t.Errorf("Value = %s, want 99", updated.Value)
	}
	if !updated.Datetime.Equal(original.Datetime) {
		t.Errorf("Datetime changed to %v, want %v", updated.Datetime, original.Datetime)
	}
	if !updated.UpdatedAt.After(*original.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want after %v", updated.UpdatedAt, original.UpdatedAt)
	}
}

func TestUpdateHistory_OtherOwnerIsNotFound(t *testing.T) {
	db := newTestDB(t)
	ensureTestUser(t, db, "u1")
	ensureTestUser(t, db, "u2")
	h := createTestHistory(t, db, "u1", day(15), "10")

	value := decimal.NewFromInt(1)
	_, err := db.UpdateHistory(context.Background(), h.ID, "u2", model.HistoryPatch{Value: &value})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateHistory() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteHistory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ensureTestUser(t, db, "u1")
	ensureTestUser(t, db, "u2")
	h := createTestHistory(t, db, "u1", day(15), "10")

	if err := db.DeleteHistory(ctx, h.ID, "u2"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("delete by other owner error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteHistory(ctx, h.ID, "u1"); err != nil {
		t.Fatalf("DeleteHistory() error = %v", err)
	}
	if err := db.DeleteHistory(ctx, h.ID, "u1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestSumHistoryValues(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	total, err := db.SumHistoryValues(ctx)
	if err != nil {
		t.Fatalf("SumHistoryValues() error = %v", err)
	}
	if !total.IsZero() {
		t.Errorf("empty total = %s, want 0", total)
	}

	ensureTestUser(t, db, "u1")
	ensureTestUser(t, db, "u2")
	createTestHistory(t, db, "u1", day(1), "0.10")
	createTestHistory(t, db, "u1", day(2), "0.20")
	createTestHistory(t, db, "u2", day(3), "100")

	total, err = db.SumHistoryValues(ctx)
	if err != nil {
		t.Fatalf("SumHistoryValues() error = %v", err)
	}
	if !total.Equal(decimal.RequireFromString("100.30")) {
		t.Errorf("total = %s, want 100.30", total)
	}
}

func TestDeleteUser_CascadesHistories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ensureTestUser(t, db, "u1")
	createTestHistory(t, db, "u1", day(1), "5")

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE uid = ?`, "u1"); err != nil {
		t.Fatalf("deleting user: %v", err)
	}

	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM histories`).Scan(&count); err != nil {
		t.Fatalf("counting histories: %v", err)
	}
	if count != 0 {
		t.Errorf("histories left = %d, want 0", count)
	}
}
