package transport_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/falconpay/falcon/controllers"
	"github.com/falconpay/falcon/lib/service"
	"github.com/falconpay/falcon/lib/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func securedEcho() http.Handler {
	c := &service.Config{
		AuthUser:     "falcon",
		AuthPassword: "demo",
	}
	e := transport.InitEcho(c)
	secured := e.Group("", transport.BasicAuthMiddleware(c))
	secured.GET("/authed", controllers.NewHomeController().Authed)
	return e
}

func TestBasicAuthRejectionAnswersProtocolEnvelope(t *testing.T) {
	handler := securedEcho()

	req := httptest.NewRequest(http.MethodGet, "/authed", nil)
	req.SetBasicAuth("falcon", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FAIL", body["status"])
	assert.Equal(t, "00", body["code"])
	assert.Equal(t, "unauthorised", body["message"])
}

func TestBasicAuthMissingCredentialsAnswersProtocolEnvelope(t *testing.T) {
	handler := securedEcho()

	req := httptest.NewRequest(http.MethodGet, "/authed", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FAIL", body["status"])
	assert.Equal(t, "00", body["code"])
}

func TestBasicAuthAcceptsConfiguredCredentials(t *testing.T) {
	handler := securedEcho()

	req := httptest.NewRequest(http.MethodGet, "/authed", nil)
	req.SetBasicAuth("falcon", "demo")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
}
