package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	assert.Equal(t, logrus.WarnLevel, NewLogger("WARN").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("verbose").GetLevel())
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "compare product a and b", NormalizeQuery("  Compare   Product A\tand B "))
	assert.Equal(t, MD5Hash(NormalizeQuery("Foo Bar")), MD5Hash(NormalizeQuery("foo   bar")))
}

func TestContentHash_Stable(t *testing.T) {
	assert.Equal(t, ContentHash("abc"), ContentHash("abc"))
	assert.NotEqual(t, ContentHash("abc"), ContentHash("abd"))
	assert.Len(t, ContentHash("abc"), 64)
}

func TestGenerateSessionID_Deterministic(t *testing.T) {
	a := GenerateSessionID("10.0.0.1curl/8.0")
	assert.Equal(t, a, GenerateSessionID("10.0.0.1curl/8.0"))
	assert.NotEqual(t, a, GenerateSessionID("10.0.0.2curl/8.0"))

	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestNewRequestID_Unique(t *testing.T) {
	assert.NotEqual(t, NewRequestID(), NewRequestID())
}

func TestErrorResponse_AbortsChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reached := false

	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		ValidationError(c, errors.New("Message cannot be empty"))
	}, func(c *gin.Context) {
		reached = true
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, reached)

	var body APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Message cannot be empty", body.Message)
	assert.Empty(t, body.Error)
}
