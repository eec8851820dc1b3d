package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/domain"
)

func record(id, activity string) domain.WorkoutRecord {
	return domain.WorkoutRecord{
		ID:              id,
		Activity:        activity,
		DurationMinutes: 30,
		CreatedAt:       time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestReplaceAllOverwrites(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]domain.WorkoutRecord{record("1", "running"), record("2", "yoga")})
	require.Equal(t, 2, store.Len())

	store.ReplaceAll([]domain.WorkoutRecord{record("3", "cycling")})
	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "3", snap[0].ID)
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]domain.WorkoutRecord{record("1", "running")})

	snap := store.Snapshot()
	snap[0].Activity = "mutated"

	assert.Equal(t, "running", store.Snapshot()[0].Activity)
}

func TestStageUpsertAppendsWithoutCursor(t *testing.T) {
	store := NewStore()
	base := []domain.WorkoutRecord{record("1", "running")}

	next := store.StageUpsert(base, record("2", "walking"))

	require.Len(t, next, 2)
	assert.Equal(t, "2", next[1].ID)
	// Staging must not touch base.
	require.Len(t, base, 1)
}

func TestStageUpsertReplacesAtCursor(t *testing.T) {
	store := NewStore()
	base := []domain.WorkoutRecord{record("1", "running"), record("2", "yoga")}
	store.ReplaceAll(base)
	require.NoError(t, store.BeginEdit(1))

	next := store.StageUpsert(base, record("2", "swimming"))

	require.Len(t, next, 2)
	assert.Equal(t, "swimming", next[1].Activity)
	assert.Equal(t, "yoga", base[1].Activity)
}

func TestStageUpsertAppendsWhenCursorBeyondBase(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]domain.WorkoutRecord{record("1", "running"), record("2", "yoga")})
	require.NoError(t, store.BeginEdit(1))

	// The freshly read remote collection shrank underneath the cursor.
	base := []domain.WorkoutRecord{record("1", "running")}
	next := store.StageUpsert(base, record("9", "swimming"))

	require.Len(t, next, 2)
	assert.Equal(t, "9", next[1].ID)
}

func TestBeginEditRejectsOutOfRange(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]domain.WorkoutRecord{record("1", "running")})

	err := store.BeginEdit(5)
	require.ErrorIs(t, err, domain.ErrValidation)
	err = store.BeginEdit(-1)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, ok := store.EditingIndex()
	assert.False(t, ok)
}

func TestResetEditClearsCursorAndAccumulator(t *testing.T) {
	store := NewStore()
	store.ReplaceAll([]domain.WorkoutRecord{record("1", "running")})
	require.NoError(t, store.BeginEdit(0))
	store.AddCalories(120)

	store.ResetEdit()

	_, ok := store.EditingIndex()
	assert.False(t, ok)
	assert.Zero(t, store.CaloriesGained())
}

func TestStageDelete(t *testing.T) {
	store := NewStore()
	base := []domain.WorkoutRecord{record("1", "running"), record("2", "yoga"), record("3", "cycling")}

	next := store.StageDelete(base, "2")
	require.Len(t, next, 2)
	assert.Equal(t, "1", next[0].ID)
	assert.Equal(t, "3", next[1].ID)

	// Unknown id leaves the collection unchanged.
	same := store.StageDelete(base, "missing")
	assert.Len(t, same, 3)
}

func TestCaloriesAccumulator(t *testing.T) {
	store := NewStore()

	store.AddCalories(120)
	store.AddCalories(80)
	assert.Equal(t, float64(200), store.CaloriesGained())

	store.RemoveCalories(80)
	assert.Equal(t, float64(120), store.CaloriesGained())

	// Floor at zero.
	store.RemoveCalories(500)
	assert.Zero(t, store.CaloriesGained())

	// Non-positive amounts are ignored.
	store.AddCalories(-10)
	assert.Zero(t, store.CaloriesGained())
}
