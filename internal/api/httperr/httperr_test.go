package httperr

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/samsonhsy/dot-backend/internal/services"
)

func TestStatus_Mapping(t *testing.T) {
	cases := []struct {
		kind services.Kind
		want int
	}{
		{services.KindUnauthenticated, http.StatusUnauthorized},
		{services.KindForbidden, http.StatusForbidden},
		{services.KindNotFound, http.StatusNotFound},
		{services.KindValidationFailed, http.StatusBadRequest},
		{services.KindConflict, http.StatusConflict},
		{services.KindQuotaExceeded, http.StatusTooManyRequests},
		{services.KindStorageFailure, http.StatusBadGateway},
		{services.KindPersistenceFailure, http.StatusInternalServerError},
		{services.KindUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.kind), "kind %v", tc.kind)
	}
}

func writeError(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Write(c, err)
	return w
}

func TestWrite_ServiceMessageInBody(t *testing.T) {
	w := writeError(services.ErrForbidden("collection is private"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"collection is private"}`, w.Body.String())
}

func TestWrite_QuotaBodyNamesLimit(t *testing.T) {
	w := writeError(services.ErrQuotaExceeded(10))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "10")
}

func TestWrite_PersistenceCauseNeverLeaks(t *testing.T) {
	w := writeError(services.ErrPersistence(errors.New("pq: connection refused host=10.0.0.5"), "failed to load user"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestWrite_ForeignErrorGetsGenericBody(t *testing.T) {
	w := writeError(errors.New("some/internal/path: boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestWrite_StorageFailureMessageShown(t *testing.T) {
	w := writeError(services.ErrStorage(errors.New("dial tcp: timeout"), "failed to delete file content"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"failed to delete file content"}`, w.Body.String())
}
