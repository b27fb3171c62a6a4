package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushnami/api/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDecodeEventInput(t *testing.T) {
	in, ve := decodeEventInput(json.RawMessage(`{
		"visitor_id": "v1",
		"experiment_id": "6f1c1f9e-8f4e-4d0c-9d7a-2b1a4b7f0c11",
		"variant": "control",
		"event_type": "click",
		"metadata": {"button": "cta"},
		"page_url": "/pricing",
		"unknown": 1
	}`))
	require.Nil(t, ve)
	assert.Equal(t, "v1", in.VisitorID)
	require.NotNil(t, in.ExperimentID)
	assert.Equal(t, "6f1c1f9e-8f4e-4d0c-9d7a-2b1a4b7f0c11", in.ExperimentID.String())
	assert.Equal(t, "control", *in.Variant)
	assert.Equal(t, "click", in.EventType)
	assert.Equal(t, "cta", in.Metadata["button"])
	assert.Equal(t, "/pricing", *in.PageURL)
	assert.Nil(t, in.EventName)
	assert.Nil(t, in.UserAgent)
}

func TestDecodeEventInputReportsField(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"numeric visitor", `{"visitor_id": 7, "event_type": "click"}`, "visitor_id"},
		{"bad uuid", `{"visitor_id": "v", "experiment_id": "nope"}`, "experiment_id"},
		{"array metadata", `{"visitor_id": "v", "metadata": [1, 2]}`, "metadata"},
		{"object variant", `{"visitor_id": "v", "variant": {}}`, "variant"},
		{"not an object", `"click"`, ""},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ve := decodeEventInput(json.RawMessage(tt.body))
			require.NotNil(t, ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, -1, ve.Index)
			assert.NotContains(t, ve.Reason, "EventInput")
		})
	}
}

func TestDecodeEventBatchPinsIndex(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"visitor_id": "v0", "event_type": "click"}`),
		json.RawMessage(`{"visitor_id": "v1", "event_type": "click"}`),
		json.RawMessage(`{"visitor_id": 7, "event_type": "click"}`),
	}
	_, err := decodeEventBatch(raws)
	ve, ok := apperr.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, 2, ve.Index)
	assert.Equal(t, "visitor_id", ve.Field)

	inputs, err := decodeEventBatch(raws[:2])
	require.NoError(t, err)
	assert.Len(t, inputs, 2)
}

func TestRespondBindErrorHidesDecoderText(t *testing.T) {
	bind := func(body string) map[string]any {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")

		var dst struct {
			Email string `json:"email"`
		}
		err := c.ShouldBindJSON(&dst)
		require.Error(t, err)
		respondBindError(c, err)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var out map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		return out
	}

	body := bind(`{"email": 42}`)
	assert.Equal(t, "email", body["field"])
	assert.NotContains(t, body, "details")

	body = bind(`{not json`)
	assert.Equal(t, "Invalid request body", body["error"])
	assert.NotContains(t, body, "field")
	assert.NotContains(t, body, "details")
}
