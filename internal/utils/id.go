package utils

import "github.com/google/uuid"

// NewID returns a random identifier for connections and requests.
func NewID() string {
	return uuid.NewString()
}

// ShortID returns a prefix of id suitable for log lines.
func ShortID(id string) string {
	const n = 8
	if len(id) <= n {
		return id
	}
	return id[:n]
}
