package redis

import (
	"fmt"

	"github.com/gambitchess/gambit/internal/model"
)

// Key prefix for all stored data
const keyPrefix = "gambit"

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// credentialsKey returns the Redis key for a user's Credentials
func credentialsKey(id model.UserID) string {
	return fmt.Sprintf("%s:credentials:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> user_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// sessionKey returns the Redis key for a GameSession
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// sessionSeqKey returns the Redis key for the session ID counter
func sessionSeqKey() string {
	return fmt.Sprintf("%s:session:seq", keyPrefix)
}
