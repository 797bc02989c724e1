package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	answerIDPrefix = "ans_"
	chunkIDPrefix  = "chk_"
)

var (
	answerIDPattern = regexp.MustCompile(`^ans_[a-zA-Z0-9]{24}$`)
	chunkIDPattern  = regexp.MustCompile(`^chk_[a-zA-Z0-9]{24}$`)
)

// NewAnswerID generates a new answer ID with the "ans_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewAnswerID() string {
	return answerIDPrefix + randomAlphanumeric(idLength)
}

// NewChunkID generates a new chunk ID with the "chk_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewChunkID() string {
	return chunkIDPrefix + randomAlphanumeric(idLength)
}

// ValidateAnswerID checks whether the given string is a valid answer ID
// (matches "ans_" + 24 alphanumeric characters).
func ValidateAnswerID(id string) bool {
	return answerIDPattern.MatchString(id)
}

// ValidateChunkID checks whether the given string is a valid chunk ID
// (matches "chk_" + 24 alphanumeric characters).
func ValidateChunkID(id string) bool {
	return chunkIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
