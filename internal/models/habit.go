package models

// Category groups habits for display
type Category string

const (
	CategoryHealth       Category = "health"
	CategoryProductivity Category = "productivity"
	CategoryWellness     Category = "wellness"
	CategoryLearning     Category = "learning"
	CategoryFinancial    Category = "financial"
	CategorySocial       Category = "social"
	CategoryOther        Category = "other"
)

// Categories lists every valid category
var Categories = []Category{
	CategoryHealth,
	CategoryProductivity,
	CategoryWellness,
	CategoryLearning,
	CategoryFinancial,
	CategorySocial,
	CategoryOther,
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Color is the display tag of a habit
type Color string

const (
	ColorSuccess   Color = "success"
	ColorPrimary   Color = "primary"
	ColorSecondary Color = "secondary"
	ColorWarning   Color = "warning"
	ColorDanger    Color = "danger"
	ColorAccent    Color = "accent"
)

// Colors lists every valid color
var Colors = []Color{ColorSuccess, ColorPrimary, ColorSecondary, ColorWarning, ColorDanger, ColorAccent}

// Valid reports whether c is a known color
func (c Color) Valid() bool {
	for _, known := range Colors {
		if c == known {
			return true
		}
	}
	return false
}

// Habit represents a recurring activity owned by a user
type Habit struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Category    Category   `json:"category"`
	Color       Color      `json:"color"`
	Active      bool       `json:"active"`
	CreatedAt   Date       `json:"createdAt"`
	Frequency   Recurrence `json:"frequency"`
}

// CompletionLog records whether a habit was done on a given day.
// There is at most one log per (habit, date).
type CompletionLog struct {
	ID        int64 `json:"id"`
	HabitID   int64 `json:"habitId"`
	Date      Date  `json:"date"`
	Completed bool  `json:"completed"`
}

// HabitView is a habit augmented with its derived analytics
type HabitView struct {
	Habit
	FrequencyLabel string          `json:"frequencyLabel"`
	Streak         int             `json:"streak"`
	LongestStreak  int             `json:"longestStreak"`
	CompletionRate int             `json:"completionRate"`
	Completions    []CompletionLog `json:"completions"`
}

// Stats is the per-user dashboard aggregate
type Stats struct {
	CurrentStreak  int `json:"currentStreak"`
	CompletionRate int `json:"completionRate"`
	ActiveHabits   int `json:"activeHabits"`
	LongestStreak  int `json:"longestStreak"`
	TotalCompleted int `json:"totalCompleted"`
	TotalSkipped   int `json:"totalSkipped"`
}
