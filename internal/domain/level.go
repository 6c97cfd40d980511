package domain

// Level is the proficiency category of a course.
type Level string

const (
	LevelBeginners         Level = "Beginners"
	LevelLowerIntermediate Level = "Lower Intermediate"
	LevelUpperIntermediate Level = "Upper Intermediate"
	LevelLowerAdvanced     Level = "Lower Advanced"
	LevelAdvanced          Level = "Advanced"
	LevelUpperAdvanced     Level = "Upper Advanced"
)

var levelRanks = map[Level]int{
	LevelBeginners:         0,
	LevelLowerIntermediate: 1,
	LevelUpperIntermediate: 2,
	LevelLowerAdvanced:     3,
	LevelAdvanced:          4,
	LevelUpperAdvanced:     5,
}

// Rank returns the ordinal of the level; ok is false for levels outside the table.
func (l Level) Rank() (rank int, ok bool) {
	rank, ok = levelRanks[l]
	return rank, ok
}

// Levels returns the known levels in rank order.
func Levels() []Level {
	return []Level{
		LevelBeginners,
		LevelLowerIntermediate,
		LevelUpperIntermediate,
		LevelLowerAdvanced,
		LevelAdvanced,
		LevelUpperAdvanced,
	}
}
