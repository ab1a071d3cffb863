package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

type saleBody struct {
	VehicleID string `json:"vehicle_id" validate:"required"`
	Customer  string `json:"customer" validate:"required,max=8"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{"customer":"a very long name"}`))
	var body saleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["vehicle_id"])
	assert.Equal(t, "must be at most 8", details["customer"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{"vehicle_id":"1234ABC","customer":"Ana","extra":1}`))
	var body saleBody
	err := DecodeJSONBody(req, &body)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock?available=true&limit=5&from=2026-03-01", nil)

	available, err := ParseQueryBool(req, "available")
	require.NoError(t, err)
	require.NotNil(t, available)
	assert.True(t, *available)

	sold, err := ParseQueryBool(req, "sold")
	require.NoError(t, err)
	assert.Nil(t, sold)

	limit, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)

	from, err := ParseQueryTime(req, "from")
	require.NoError(t, err)
	require.NotNil(t, from)
	assert.Equal(t, 2026, from.Year())

	bad := httptest.NewRequest(http.MethodGet, "/api/v1/stock?available=maybe", nil)
	_, err = ParseQueryBool(bad, "available")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPathUUID(t *testing.T) {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("saleId", "not-a-uuid")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/not-a-uuid/validate", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	_, err := PathUUID(req, "saleId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "ph-1", SanitizeString("  ph-1\n", 0))
	assert.Equal(t, "keyA", SanitizeString("key\x00A", 16))
	assert.Equal(t, "abc", SanitizeString("abcdef", 3))
	// "é" is two bytes; the cap must not split it
	assert.Equal(t, "caf", SanitizeString("café", 4))
}

type plateBody struct {
	VehicleID string `json:"vehicle_id" validate:"required,vehicle_id"`
	Note      string `json:"note,omitempty" validate:"omitempty,notblank"`
}

func TestDecodeJSONBodyVehicleIDAndShape(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "plate", body: `{"vehicle_id":" 1234-abc "}`},
		{name: "symbols", body: `{"vehicle_id":"12/34"}`, wantErr: true},
		{name: "too long", body: `{"vehicle_id":"` + strings.Repeat("A", 33) + `"}`, wantErr: true},
		{name: "blank note", body: `{"vehicle_id":"1234ABC","note":"   "}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
		{name: "two documents", body: `{"vehicle_id":"A"}{"vehicle_id":"B"}`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/custody", strings.NewReader(tc.body))
			var body plateBody
			err := DecodeJSONBody(req, &body)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	payload := `{"vehicle_id":"1234ABC","note":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/custody", strings.NewReader(payload))
	var body plateBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.Equal(t, "request body too large", pkgerrors.As(err).Message())
}
