package chat

import "errors"

var (
	// ErrEmptyText is returned when a message has no text after trimming
	// whitespace.
	ErrEmptyText = errors.New("message text cannot be empty")
	// ErrForbidden is returned when a caller requests history for a
	// participant other than themselves.
	ErrForbidden = errors.New("caller may only request their own history")
	// ErrNoMessages is returned when a participant has no message history.
	ErrNoMessages = errors.New("no messages found")
)
