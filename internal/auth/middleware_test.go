package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-test-secret-test-secret"

func newRouter(a *Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/sync/reset", a.Middleware(), RequirePermission(PermSyncControl), func(c *gin.Context) {
		c.String(http.StatusOK, Subject(c))
	})
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/sync/reset", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTHandler_RoundTrip(t *testing.T) {
	h := NewJWTHandler(testSecret, time.Hour, "parambridge")

	token, err := h.GenerateAccessToken("pilot", RoleOperator)
	require.NoError(t, err)

	claims, err := h.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "pilot", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)
	assert.NotEmpty(t, claims.ID)

	_, err = h.GenerateAccessToken("pilot", Role("root"))
	assert.Error(t, err)
}

func TestJWTHandler_Rejects(t *testing.T) {
	h := NewJWTHandler(testSecret, time.Hour, "parambridge")

	other, err := NewJWTHandler("another-secret-another-secret-1234", time.Hour, "parambridge").
		GenerateAccessToken("pilot", RoleAdmin)
	require.NoError(t, err)
	_, err = h.ValidateAccessToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewJWTHandler(testSecret, -time.Minute, "parambridge").GenerateAccessToken("pilot", RoleAdmin)
	require.NoError(t, err)
	_, err = h.ValidateAccessToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewJWTHandler(testSecret, time.Hour, "someone-else").GenerateAccessToken("pilot", RoleAdmin)
	require.NoError(t, err)
	_, err = h.ValidateAccessToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	h := NewJWTHandler(testSecret, time.Hour, "parambridge")
	r := newRouter(NewAuthenticator(h, true, zap.NewNop()))

	operator, err := h.GenerateAccessToken("pilot", RoleOperator)
	require.NoError(t, err)
	viewer, err := h.GenerateAccessToken("guest", RoleViewer)
	require.NoError(t, err)

	w := do(r, "Bearer "+operator)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pilot", w.Body.String())

	assert.Equal(t, http.StatusForbidden, do(r, "Bearer "+viewer).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer not-a-jwt").Code)
}

func TestMiddleware_Disabled(t *testing.T) {
	r := newRouter(NewAuthenticator(nil, false, zap.NewNop()))
	assert.Equal(t, http.StatusOK, do(r, "").Code)
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, RoleAdmin.Has(PermParametersWrite))
	assert.False(t, RoleOperator.Has(PermParametersWrite))
	assert.True(t, RoleOperator.Has(PermSyncControl))
	assert.False(t, RoleViewer.Has(PermSyncControl))
	assert.False(t, Role("root").Valid())
}

func TestMiddleware_QueryToken(t *testing.T) {
	h := NewJWTHandler(testSecret, time.Hour, "parambridge")
	r := newRouter(NewAuthenticator(h, true, zap.NewNop()))

	token, err := h.GenerateAccessToken("pilot", RoleAdmin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/sync/reset?access_token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
