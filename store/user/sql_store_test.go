package user

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return NewSQLStore(db), mock
}

func TestSQLStore_GetBasicProfile(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "avatar_url"}).
			AddRow(9, "Ada", "Owner", "https://cdn.example.com/a/9.png"))

	p, err := store.GetBasicProfile(context.Background(), 9)
	if err != nil {
		t.Fatalf("GetBasicProfile failed: %v", err)
	}
	if p.FirstName != "Ada" || p.LastName != "Owner" {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestSQLStore_GetBasicProfile_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "avatar_url"}))

	if _, err := store.GetBasicProfile(context.Background(), 404); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSQLStore_GetBasicProfiles(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "avatar_url"}).
			AddRow(5, "Bo", "Buyer", "").
			AddRow(9, "Ada", "Owner", "https://cdn.example.com/a/9.png"))

	profiles, err := store.GetBasicProfiles(context.Background(), []int64{5, 9, 11})
	if err != nil {
		t.Fatalf("GetBasicProfiles failed: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[9].FirstName != "Ada" {
		t.Errorf("expected Ada for user 9, got %q", profiles[9].FirstName)
	}
	if _, ok := profiles[11]; ok {
		t.Error("expected no profile for unknown user 11")
	}
}

func TestSQLStore_GetBasicProfiles_NoIDs(t *testing.T) {
	store, mock := newMockStore(t)

	profiles, err := store.GetBasicProfiles(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetBasicProfiles failed: %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("expected no profiles, got %d", len(profiles))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected no queries, got: %v", err)
	}
}
