package store

import "strings"

// Key prefixes for key-value backends.
const (
	PrefixProgress = "progress:"
)

// ProgressKey returns the key of one record: "progress:<user>:<video>".
func ProgressKey(userID, videoID string) []byte {
	var b strings.Builder
	b.Grow(len(PrefixProgress) + len(userID) + len(videoID) + 1)
	b.WriteString(PrefixProgress)
	b.WriteString(userID)
	b.WriteByte(':')
	b.WriteString(videoID)
	return []byte(b.String())
}

// UserProgressPrefix returns the key prefix shared by all records of a user.
func UserProgressPrefix(userID string) []byte {
	return []byte(PrefixProgress + userID + ":")
}
