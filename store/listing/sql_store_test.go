package listing

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSQLStore_GetTitles(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	store := NewSQLStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM listings")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(42, "Two-bedroom flat near the river"))

	titles, err := store.GetTitles(context.Background(), []int64{42, 43})
	if err != nil {
		t.Fatalf("GetTitles failed: %v", err)
	}
	if titles[42] != "Two-bedroom flat near the river" {
		t.Errorf("unexpected title for 42: %q", titles[42])
	}
	if _, ok := titles[43]; ok {
		t.Error("expected no title for unknown listing 43")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_GetTitles_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	store := NewSQLStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM listings")).
		WillReturnError(errors.New("relation \"listings\" does not exist"))

	if _, err := store.GetTitles(context.Background(), []int64{42}); err == nil {
		t.Fatal("expected error, got nil")
	}
}
