package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/komodo-sh/komodo/pkg/types"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "validation error maps to 400",
			err:        types.NewValidationError("name", "missing field"),
			expectCode: http.StatusBadRequest,
			expectMsg:  "missing field",
		},
		{
			name:       "unauthenticated maps to 401",
			err:        fmt.Errorf("wrapped: %w", types.ErrUnauthenticated),
			expectCode: http.StatusUnauthorized,
			expectMsg:  "unauthenticated",
		},
		{
			name:       "not found maps to 404",
			err:        fmt.Errorf("wrapped: %w", types.ErrNotFound),
			expectCode: http.StatusNotFound,
			expectMsg:  "not found",
		},
		{
			name:       "forbidden maps to 403",
			err:        fmt.Errorf("wrapped: %w", types.ErrForbidden),
			expectCode: http.StatusForbidden,
			expectMsg:  "forbidden",
		},
		{
			name:       "busy maps to 409",
			err:        fmt.Errorf("wrapped: %w", types.ErrBusy),
			expectCode: http.StatusConflict,
			expectMsg:  "busy",
		},
		{
			name:       "conflict maps to 409",
			err:        fmt.Errorf("name taken: %w", types.ErrConflict),
			expectCode: http.StatusConflict,
			expectMsg:  "name taken",
		},
		{
			name:       "external failure maps to 502",
			err:        types.NewExternalError("periphery", errors.New("connection refused")),
			expectCode: http.StatusBadGateway,
			expectMsg:  "periphery",
		},
		{
			name:       "unknown error maps to 500",
			err:        errors.New("something unexpected happened"),
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapError(tt.err)
			assert.IsType(t, &echo.HTTPError{}, he)
			assert.Equal(t, tt.expectCode, he.Code)
			assert.Contains(t, he.Error(), tt.expectMsg)
		})
	}
}
