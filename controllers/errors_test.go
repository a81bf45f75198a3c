package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type errorBody struct {
	Status  bool                   `json:"status"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func respond(t *testing.T, err error) (int, errorBody) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondServiceError(c, err)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestRespondServiceErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{services.ErrSessionNotFound, http.StatusNotFound},
		{services.ErrSessionExpired, http.StatusUnauthorized},
		{services.ErrTableNotFound, http.StatusNotFound},
		{services.ErrOrderNotFound, http.StatusNotFound},
		{services.ErrItemNotFound, http.StatusNotFound},
		{services.ErrAlreadyPaid, http.StatusConflict},
		{services.ErrNotYetPaid, http.StatusConflict},
		{services.ErrAlreadyDone, http.StatusConflict},
		{services.ErrAlreadyCompleted, http.StatusConflict},
		{services.ErrInvalidTransition, http.StatusConflict},
		{services.ErrInvalidSignature, http.StatusForbidden},
		{services.ErrNotEditable, http.StatusForbidden},
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{&services.Error{Kind: services.KindInvalidRequest, Message: "quantity must be positive"}, http.StatusBadRequest},
		{fmt.Errorf("mark paid: %w", services.ErrAlreadyPaid), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(string(services.KindOf(tt.err)), func(t *testing.T) {
			code, body := respond(t, tt.err)
			assert.Equal(t, tt.status, code)
			assert.False(t, body.Status)
			assert.Equal(t, string(services.KindOf(tt.err)), body.Data["kind"])
		})
	}
}

func TestRespondServiceErrorDetails(t *testing.T) {
	code, body := respond(t, &services.Error{
		Kind:    services.KindStockInsufficient,
		Message: "some items are out of stock",
		StockErrors: []services.StockShortage{
			{MenuID: 1, MenuName: "Red Velvet Cake", Requested: 3, Available: 1},
		},
		AvailableItems: []services.StockSnapshot{
			{MenuID: 2, MenuName: "Americano", AvailableStock: 40},
		},
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "some items are out of stock", body.Message)
	require.Len(t, body.Data["stock_errors"], 1)
	require.Len(t, body.Data["available_items"], 1)

	code, body = respond(t, &services.Error{
		Kind:           services.KindItemsNotAllDone,
		PendingItemIDs: []uint{4, 9},
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, []interface{}{float64(4), float64(9)}, body.Data["pending_item_ids"])
	assert.NotContains(t, body.Data, "stock_errors")

	code, body = respond(t, &services.Error{
		Kind:          services.KindInvalidTransition,
		CurrentStatus: "Failed",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Failed", body.Data["current_status"])
}

func TestRespondServiceErrorHidesInfrastructureErrors(t *testing.T) {
	code, body := respond(t, errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", body.Message)
	assert.Nil(t, body.Data)
}

func TestParamID(t *testing.T) {
	tests := []struct {
		value string
		id    uint
		ok    bool
	}{
		{"42", 42, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: tt.value}}

		id, ok := paramID(c, "id")
		assert.Equal(t, tt.ok, ok, tt.value)
		assert.Equal(t, tt.id, id, tt.value)
		if !ok {
			assert.Equal(t, http.StatusBadRequest, w.Code)
		}
	}
}
