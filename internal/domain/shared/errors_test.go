package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Matching(t *testing.T) {
	cause := errors.New("parse failure")
	err := fmt.Errorf("mark day: %w", WrapError("attendance", "NormalizeDate", ErrInvalidFormat, "invalid date", cause))

	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsValidation(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, "mark day: attendance.NormalizeDate: invalid date: parse failure", err.Error())
}

func TestDomainError_Sentinels(t *testing.T) {
	tests := []struct {
		err      error
		notFound bool
		invalid  bool
	}{
		{ErrSemesterNotFound, true, false},
		{ErrLectureNotScheduled, true, false},
		{ErrEmptySubjectName, false, true},
		{ErrInvalidMark, false, true},
		{ErrLastSemester, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.invalid, IsValidation(tt.err))
		})
	}

	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", ErrLastSemester), ErrInvalidState)
}
