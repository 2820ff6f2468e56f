package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cure-Pa$$word")
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.NoError(t, ComparePassword(hash, "s3cure-Pa$$word"))
	assert.Error(t, ComparePassword(hash, "wrong-password"))
}

func TestHashPassword_EmptyRejected(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}
