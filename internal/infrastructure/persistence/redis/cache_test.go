package redis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/attendance-hub/attendance-tracker/pkg/retry"
)

func TestClassifyPingError(t *testing.T) {
	assert.NoError(t, classifyPingError(nil))

	for _, msg := range []string{
		"WRONGPASS invalid username-password pair or user is disabled.",
		"NOAUTH Authentication required.",
		"ERR invalid password",
	} {
		assert.True(t, retry.IsPermanent(classifyPingError(errors.New(msg))), msg)
	}
	for _, msg := range []string{
		"LOADING Redis is loading the dataset in memory",
		"dial tcp 127.0.0.1:6379: connect: connection refused",
	} {
		assert.False(t, retry.IsPermanent(classifyPingError(errors.New(msg))), msg)
	}
}
