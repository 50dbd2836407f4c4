package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type joinRequest struct {
	RoomID string `json:"roomId" validate:"required,max=16,id"`
	UserID string `json:"userId,omitempty" validate:"omitempty,max=8"`
	Secret string `json:"-" validate:"max=2"`
}

func TestValidator_Struct(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(joinRequest{RoomID: "room-1"}))

	err := v.Struct(joinRequest{UserID: "far-too-long"})
	require.Error(t, err)

	var fieldErrs Errors
	require.True(t, errors.As(err, &fieldErrs))
	require.Len(t, fieldErrs, 2)
	assert.Equal(t, "roomId", fieldErrs[0].Field)
	assert.Equal(t, "REQUIRED", fieldErrs[0].Code)
	assert.Equal(t, "roomId is required", fieldErrs[0].Message)
	assert.Equal(t, "userId", fieldErrs[1].Field)
	assert.Equal(t, "MAX", fieldErrs[1].Code)
	assert.Contains(t, err.Error(), "userId must not exceed 8 characters")
}

func TestValidator_CustomID(t *testing.T) {
	v := New()
	err := v.Struct(joinRequest{RoomID: "bad room!"})

	var fieldErrs Errors
	require.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, "ID", fieldErrs[0].Code)
	assert.Equal(t, "roomId contains invalid characters", fieldErrs[0].Message)
}

func TestValidateRoomID(t *testing.T) {
	tests := []struct {
		name    string
		roomID  string
		wantErr bool
	}{
		{"valid", "interview-42", false},
		{"uuid", "6f1c2a8e-93b1-4c55-8f6e-2b0c8de1a9a1", false},
		{"empty", "", true},
		{"spaces", "room 1", true},
		{"too long", strings.Repeat("r", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoomID(tt.roomID)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		wantErr bool
	}{
		{"*", false},
		{"http://localhost:3000", false},
		{"https://app.example.com", false},
		{"ftp://example.com", true},
		{"https://", true},
		{"https://example.com/path", true},
		{"not a url", true},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			err := ValidateOrigin(tt.origin)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
