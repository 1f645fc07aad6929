package utils

import (
	"strconv"

	"github.com/google/uuid"
)

// NewID returns a random identifier for a transport connection.
func NewID() string {
	return uuid.NewString()
}

// SequentialUserID builds the fallback user id for the n-th online user.
func SequentialUserID(n int) string {
	return "user_" + strconv.Itoa(n)
}
