// Package ranking turns raw attempt records into an ordered leaderboard.
//
// Every metric is normalized into [0, 100] before weighting so that neither
// accuracy nor sheer volume of activity can dominate the final score.
package ranking

import (
	"math"
	"sort"
	"strings"

	"quiz-leaderboard-service/internal/domain"
)

const (
	maxScore = 100.0

	weightScore     = 0.5
	weightTests     = 0.3
	weightQuestions = 0.2

	// 10 completed tests saturate the tests component.
	pointsPerTest = 10.0
	// 50 attempted questions saturate the questions component.
	pointsPerQuestion = 2.0

	unknownUser = "Unknown User"
)

// Aggregate folds attempts into one rollup per user. The normalized
// components and final score are filled in.
func Aggregate(attempts []domain.AttemptRecord) map[string]domain.UserAggregate {
	type acc struct {
		agg   domain.UserAggregate
		total float64
	}
	groups := make(map[string]*acc)
	for _, a := range attempts {
		g, ok := groups[a.UserID]
		if !ok {
			g = &acc{agg: domain.UserAggregate{UserID: a.UserID}}
			groups[a.UserID] = g
		}
		g.agg.TestsCompleted++
		g.total += clampScore(a.ScorePercentage)
		if a.TotalQuestions > 0 {
			g.agg.TotalQuestionsAttempted += a.TotalQuestions
		}
		if a.CompletedAt.After(g.agg.LastTestDate) {
			g.agg.LastTestDate = a.CompletedAt
		}
	}

	out := make(map[string]domain.UserAggregate, len(groups))
	for id, g := range groups {
		agg := g.agg
		agg.AverageScore = g.total / float64(agg.TestsCompleted)
		agg.NormalizedScore = math.Min(agg.AverageScore, maxScore)
		agg.NormalizedTests = math.Min(float64(agg.TestsCompleted)*pointsPerTest, maxScore)
		agg.NormalizedQuestions = math.Min(float64(agg.TotalQuestionsAttempted)*pointsPerQuestion, maxScore)
		agg.FinalScore = FinalScore(agg.AverageScore, agg.TestsCompleted, agg.TotalQuestionsAttempted)
		out[id] = agg
	}
	return out
}

// FinalScore combines the three normalized components with a 50/30/20 split.
func FinalScore(averageScore float64, testsCompleted, totalQuestions int) float64 {
	score := math.Min(clampScore(averageScore), maxScore)
	tests := math.Min(math.Max(float64(testsCompleted), 0)*pointsPerTest, maxScore)
	questions := math.Min(math.Max(float64(totalQuestions), 0)*pointsPerQuestion, maxScore)
	return math.Min(weightScore*score+weightTests*tests+weightQuestions*questions, maxScore)
}

// ComputeLeaderboard aggregates attempts per user, joins them with profiles and
// orders them by final score, highest first. Users without a profile are left
// out. Ties are broken by user id so the order is reproducible.
func ComputeLeaderboard(attempts []domain.AttemptRecord, profiles map[string]domain.Profile) []domain.LeaderboardEntry {
	aggregates := Aggregate(attempts)

	entries := make([]domain.LeaderboardEntry, 0, len(aggregates))
	for id, agg := range aggregates {
		profile, ok := profiles[id]
		if !ok {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserAggregate: agg,
			DisplayName:   DisplayName(profile),
			Email:         profile.Email,
			AvatarURL:     profile.AvatarURL,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].FinalScore != entries[j].FinalScore {
			return entries[i].FinalScore > entries[j].FinalScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries
}

// UserRank returns the 1-based position of userID on the leaderboard computed
// from attempts and profiles. The boolean is false when the user is not ranked.
func UserRank(userID string, attempts []domain.AttemptRecord, profiles map[string]domain.Profile) (int, bool) {
	return RankOf(ComputeLeaderboard(attempts, profiles), userID)
}

// RankOf looks up userID in an already ordered leaderboard.
func RankOf(entries []domain.LeaderboardEntry, userID string) (int, bool) {
	for i, e := range entries {
		if e.UserID == userID {
			return i + 1, true
		}
	}
	return 0, false
}

// DisplayName falls back to the email local part, then to a placeholder.
func DisplayName(p domain.Profile) string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(p.Email, "@"); local != "" {
		return local
	}
	return unknownUser
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > maxScore:
		return maxScore
	}
	return v
}
