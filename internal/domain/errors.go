package domain

import "errors"

var (
	// ErrTokenMissing is returned when a connection carries no access token.
	ErrTokenMissing = errors.New("no authentication token provided")
	// ErrTokenInvalid is returned for a malformed or expired access token.
	ErrTokenInvalid = errors.New("token validation failed")
	// ErrUserNotFound indicates the token's subject does not resolve to a user.
	ErrUserNotFound = errors.New("user not found")
	// ErrQuizNotFound indicates an unknown quiz code.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question id is not in the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNotRunning is returned for commands that require a running quiz.
	ErrNotRunning = errors.New("quiz is not running")
	// ErrNotHost is returned when a non-host sends a host-only command.
	ErrNotHost = errors.New("only the host may do that")
	// ErrRoomClosed is returned by Room.Add after the registry pruned the room.
	ErrRoomClosed = errors.New("room closed")
)
