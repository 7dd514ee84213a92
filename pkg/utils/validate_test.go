package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fescue/pkg/models"
)

func TestValidate_Phone(t *testing.T) {
	tests := []struct {
		phone string
		valid bool
	}{
		{"0812345678", true},
		{"+66 81 234 5678", true},
		{"081-234-5678", true},
		{"12345", false},
		{"phone me", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			_, err := Validate(models.LinkByPhoneRequest{PhoneNumber: tt.phone})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidationErrorToString(t *testing.T) {
	_, err := Validate(models.LinkByPhoneRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PhoneNumber")
	assert.Contains(t, err.Error(), "required")
}

func TestBindRequest(t *testing.T) {
	e := echo.New()

	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phoneNumber":"0812345678"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())

		body, err := BindRequest[models.LinkByPhoneRequest](c)
		require.NoError(t, err)
		assert.Equal(t, "0812345678", body.PhoneNumber)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phoneNumber":""}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())

		_, err := BindRequest[models.LinkByPhoneRequest](c)
		require.Error(t, err)
		assert.True(t, httperror.IsHTTPError(err))
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}
