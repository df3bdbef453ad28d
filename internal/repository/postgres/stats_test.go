package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStatsRepository_CountRedeemedCoupons(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	since := time.Now().AddDate(0, 0, -30)
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM coupons.*usage_count > 0.*COALESCE\(redeemed_at, created_at\)`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	repo := NewStatsRepository(db)
	got, err := repo.CountRedeemedCoupons(context.Background(), since)
	if err != nil {
		t.Fatalf("CountRedeemedCoupons() error: %v", err)
	}
	if got != 4 {
		t.Errorf("CountRedeemedCoupons() = %d, want 4", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
