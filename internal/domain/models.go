package domain

import (
	"sort"
	"time"
)

// Quiz run status as mirrored both in the quizzes table and in the live room.
const (
	StatusIdle    = "idle"
	StatusRunning = "running"
)

// User is the identity resolved from an access token. Registration and
// credential storage live in a separate service; we only read.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Question models a single multiple-choice question with exactly one correct
// option, identified by index.
type Question struct {
	ID            int64    `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Score         int      `json:"score"`
	Order         int      `json:"order"`
}

// Quiz is the definition loaded by code. Questions are kept sorted by display
// order (ties by id) so clients can sequence them without re-sorting.
type Quiz struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	OwnerID     string     `json:"created_by"`
	Questions   []Question `json:"questions"`
}

// SortQuestions orders questions for client display: by Order, ties by ID.
func (q *Quiz) SortQuestions() {
	sort.Slice(q.Questions, func(i, j int) bool {
		if q.Questions[i].Order != q.Questions[j].Order {
			return q.Questions[i].Order < q.Questions[j].Order
		}
		return q.Questions[i].ID < q.Questions[j].ID
	})
}

// QuestionByID returns the question with the given id, or nil.
func (q *Quiz) QuestionByID(id int64) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i]
		}
	}
	return nil
}

// Summary returns the quiz header embedded in room_participants payloads.
// It never carries questions.
func (q *Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:          q.ID,
		Code:        q.Code,
		Title:       q.Title,
		Description: q.Description,
		CreatedBy:   q.OwnerID,
	}
}

// QuizSummary is the lightweight quiz view sent to room members.
type QuizSummary struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

// Participant is the durable connection record: one row per (quiz, user)
// while that user holds a live connection.
type Participant struct {
	QuizID      string
	UserID      string
	ConnectedAt time.Time
}

// ParticipantInfo is the participant view broadcast to room members.
type ParticipantInfo struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	IsHost bool   `json:"is_host"`
}

// ScoreEntry is the durable cumulative score for one user in one quiz.
// Created lazily when the quiz starts, removed when it ends.
type ScoreEntry struct {
	QuizID            string
	UserID            string
	Score             int
	QuestionsAnswered int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LeaderboardEntry is one row of the derived leaderboard.
type LeaderboardEntry struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	Score             int    `json:"score"`
	QuestionsAnswered int    `json:"questions_answered"`
}

// SortLeaderboard orders entries by score descending, ties by user id
// ascending, so repeated reads of unchanged state produce identical output.
func SortLeaderboard(entries []LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
}

// AnswerResult summarizes one submission for the leaderboard_update broadcast.
type AnswerResult struct {
	UserID     string `json:"user_id"`
	QuestionID int64  `json:"question_id"`
	IsCorrect  bool   `json:"is_correct"`
}
