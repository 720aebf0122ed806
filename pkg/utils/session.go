package utils

import "github.com/google/uuid"

// GenerateSessionID derives a stable anonymous session id from client
// fingerprint data.
func GenerateSessionID(seed string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

// NewRequestID returns a random request id.
func NewRequestID() string {
	return uuid.NewString()
}
