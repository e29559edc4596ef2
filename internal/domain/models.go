package domain

import "time"

// AttemptRecord is one completed test submission by a user.
type AttemptRecord struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	TestName           string    `json:"testName"`
	CompletedAt        time.Time `json:"completedAt"`
	ScorePercentage    float64   `json:"scorePercentage"`
	TotalQuestions     int       `json:"totalQuestions"`
	CorrectAnswers     int       `json:"correctAnswers"`
	AttemptedQuestions int       `json:"attemptedQuestions"`
}

// Profile carries the display metadata of a user.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// UserAggregate is the per-user rollup of all attempt records.
type UserAggregate struct {
	UserID                  string    `json:"userId"`
	TestsCompleted          int       `json:"testsCompleted"`
	AverageScore            float64   `json:"averageScore"`
	TotalQuestionsAttempted int       `json:"totalQuestionsAttempted"`
	LastTestDate            time.Time `json:"lastTestDate"`
	NormalizedScore         float64   `json:"normalizedScore"`
	NormalizedTests         float64   `json:"normalizedTests"`
	NormalizedQuestions     float64   `json:"normalizedQuestions"`
	FinalScore              float64   `json:"finalScore"`
}

// LeaderboardEntry is an aggregate joined with the user's profile.
type LeaderboardEntry struct {
	UserAggregate
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Leaderboard captures the ordered ranking at a point in time.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
