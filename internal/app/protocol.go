package app

import (
	"encoding/json"
	"fmt"

	"quiz-room-service/internal/domain"
)

// Inbound command types.
const (
	cmdStartQuiz    = "start_quiz"
	cmdSubmitAnswer = "submit_answer"
	cmdEndQuiz      = "end_quiz"
)

// Outbound message types.
const (
	msgRoomParticipants  = "room_participants"
	msgStartQuizNow      = "start_quiz_now"
	msgLeaderboardUpdate = "leaderboard_update"
	msgEndQuizNow        = "end_quiz_now"
	msgError             = "error"
)

// command is the tagged union of the inbound message shapes. Unknown types
// and malformed payloads are dropped without touching the connection.
type command struct {
	Type       string `json:"type"`
	QuestionID int64  `json:"question_id"`
	Answer     *int   `json:"answer"`
}

func parseCommand(raw []byte) (command, error) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return command{}, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Type == "" {
		return command{}, fmt.Errorf("command without type")
	}
	return cmd, nil
}

type roomParticipantsMsg struct {
	Type         string                    `json:"type"`
	Quiz         domain.QuizSummary        `json:"quiz"`
	Participants []domain.ParticipantInfo  `json:"participants"`
	Leaderboard  []domain.LeaderboardEntry `json:"leaderboard,omitempty"`
}

type startQuizNowMsg struct {
	Type        string                    `json:"type"`
	QuizID      string                    `json:"quiz_id"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
	Questions   []domain.Question         `json:"questions"`
}

type leaderboardUpdateMsg struct {
	Type         string                    `json:"type"`
	Leaderboard  []domain.LeaderboardEntry `json:"leaderboard"`
	AnswerResult domain.AnswerResult       `json:"answer_result"`
}

type endQuizNowMsg struct {
	Type   string `json:"type"`
	QuizID string `json:"quiz_id"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
