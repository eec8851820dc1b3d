// Package domain defines the core types shared by the workout ledger service.
package domain

import (
	"strconv"
	"time"
)

// WorkoutRecord is one logged exercise session inside a user's ledger.
type WorkoutRecord struct {
	ID              string    `json:"id"`
	Activity        string    `json:"activity"`
	DurationMinutes int       `json:"duration_minutes"`
	CaloriesGained  float64   `json:"calories_gained"`
	CaloriesBurned  int       `json:"calories_burned"`
	AttachmentRef   string    `json:"attachment_ref,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Goals captures the fitness goals stored on the user document.
type Goals struct {
	MuscleGain bool `json:"muscle_gain"`
	WeightLoss bool `json:"weight_loss"`
}

// UserDocument is the whole per-user remote document. The ledger service only
// ever rewrites the workouts field; profile fields are preserved by
// merge-on-field writes.
type UserDocument struct {
	Name     string          `json:"name,omitempty"`
	Age      int             `json:"age,omitempty"`
	HeightCM float64         `json:"height_cm,omitempty"`
	WeightKG float64         `json:"weight_kg,omitempty"`
	Goals    Goals           `json:"goals,omitempty"`
	Workouts []WorkoutRecord `json:"workouts"`
}

// NutritionItem is an immutable value returned by a food query. Only its
// calories contribute to a record's gained-calories accumulator.
type NutritionItem struct {
	Title        string  `json:"title"`
	Calories     float64 `json:"calories"`
	CarbsGrams   float64 `json:"carbs_grams"`
	FatGrams     float64 `json:"fat_grams"`
	ProteinGrams float64 `json:"protein_grams"`
	ImageURL     string  `json:"image_url,omitempty"`
}

// NewRecordID derives a record id from the current clock, bumping until it is
// distinct from every id already present in the collection. Ids are never
// reassigned after creation.
func NewRecordID(now time.Time, existing []WorkoutRecord) string {
	n := now.UnixNano()
	for {
		id := strconv.FormatInt(n, 10)
		if !containsID(existing, id) {
			return id
		}
		n++
	}
}

func containsID(records []WorkoutRecord, id string) bool {
	for _, r := range records {
		if r.ID == id {
			return true
		}
	}
	return false
}
