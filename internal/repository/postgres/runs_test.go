package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/murillocortez/klyver-engine/internal/domain"
)

func TestRunStore_Finish_PersistsCounters(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	finished := time.Now()
	mock.ExpectExec(`(?s)UPDATE campaign_runs.*simulated_count = \$7`).
		WithArgs("run-1", domain.RunCompleted, 7, 3, 1, 1, 2, "", finished).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewRunStore(db)
	err := store.Finish(context.Background(), &domain.CampaignRun{
		ID:             "run-1",
		Slug:           domain.SlugBirthday,
		Status:         domain.RunCompleted,
		Processed:      7,
		SentCount:      3,
		SkippedCount:   1,
		FailedCount:    1,
		SimulatedCount: 2,
		FinishedAt:     &finished,
	})
	if err != nil {
		t.Fatalf("Finish() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
