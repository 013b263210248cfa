package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-explorer/internal/models"
)

func makeRows(n int) []*models.DailyObservation {
	rows := make([]*models.DailyObservation, n)
	for i := range rows {
		rows[i] = &models.DailyObservation{
			StationID: "001000",
			Date:      time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		}
	}
	return rows
}

func fastSplitOptions() SplitOptions {
	return SplitOptions{
		MinChunkSize: 2,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func TestInsertWithSplit_AllGood(t *testing.T) {
	rows := makeRows(10)

	calls := 0
	outcome := InsertWithSplit(context.Background(), rows, fastSplitOptions(), func(ctx context.Context, batch []*models.DailyObservation) error {
		calls++
		return nil
	})

	assert.Equal(t, 10, outcome.Inserted)
	assert.Equal(t, 0, outcome.Failed)
	assert.Equal(t, 0, outcome.Splits)
	assert.Equal(t, 0, outcome.Retries)
	assert.Equal(t, 1, calls)
}

func TestInsertWithSplit_Empty(t *testing.T) {
	outcome := InsertWithSplit(context.Background(), nil, fastSplitOptions(), func(ctx context.Context, batch []*models.DailyObservation) error {
		t.Fatal("insert should not be called for an empty batch")
		return nil
	})

	assert.Equal(t, 0, outcome.Inserted)
	assert.Equal(t, 0, outcome.Failed)
}

func TestInsertWithSplit_TransientFailureRetries(t *testing.T) {
	rows := makeRows(8)

	attempts := 0
	outcome := InsertWithSplit(context.Background(), rows, fastSplitOptions(), func(ctx context.Context, batch []*models.DailyObservation) error {
		attempts++
		if attempts <= 2 {
			return errors.New("connection reset")
		}
		return nil
	})

	// Two failed attempts, then success on the third; the whole batch commits
	// without splitting.
	assert.Equal(t, 8, outcome.Inserted)
	assert.Equal(t, 0, outcome.Failed)
	assert.Equal(t, 0, outcome.Splits)
	assert.Equal(t, 2, outcome.Retries)
}

func TestInsertWithSplit_PoisonRowIsolated(t *testing.T) {
	rows := makeRows(8)
	poison := rows[5]

	outcome := InsertWithSplit(context.Background(), rows, fastSplitOptions(), func(ctx context.Context, batch []*models.DailyObservation) error {
		for _, row := range batch {
			if row == poison {
				return fmt.Errorf("malformed row %s", row.Date.Format("2006-01-02"))
			}
		}
		return nil
	})

	// Halving bottoms out at the single poison row; every other row commits.
	assert.Equal(t, 7, outcome.Inserted)
	assert.Equal(t, 1, outcome.Failed)
	assert.Greater(t, outcome.Splits, 0)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0].Error(), "malformed row")

	// The abandoned row is identified so derived rollups can exclude it.
	require.Len(t, outcome.FailedRows, 1)
	assert.Same(t, poison, outcome.FailedRows[0])
}

func TestInsertWithSplit_AllRowsBad(t *testing.T) {
	rows := makeRows(4)

	outcome := InsertWithSplit(context.Background(), rows, fastSplitOptions(), func(ctx context.Context, batch []*models.DailyObservation) error {
		return errors.New("constraint violation")
	})

	assert.Equal(t, 0, outcome.Inserted)
	assert.Equal(t, 4, outcome.Failed)
	assert.Len(t, outcome.Errors, 4)
	assert.Len(t, outcome.FailedRows, 4)
}

func TestInsertWithSplit_ContextCancelled(t *testing.T) {
	rows := makeRows(6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := InsertWithSplit(ctx, rows, fastSplitOptions(), func(ctx context.Context, batch []*models.DailyObservation) error {
		return errors.New("should not matter")
	})

	// A cancelled context fails fast without burning retries.
	assert.Equal(t, 0, outcome.Inserted)
	assert.Equal(t, 6, outcome.Failed)
}
