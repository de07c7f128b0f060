package api

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderForm struct {
	Amount   int64  `validate:"required,gt=0"`
	Currency string `validate:"omitempty,len=3"`
	Purpose  string `validate:"omitempty,oneof=wallet_topup package"`
}

func TestBindingError_FieldDetails(t *testing.T) {
	err := validator.New().Struct(orderForm{Currency: "RUPEE", Purpose: "gift"})
	require.Error(t, err)

	resp := BindingError(err)
	assert.Equal(t, "validation failed", resp.Error)
	assert.ElementsMatch(t, []ValidationError{
		{Field: "Amount", Message: "is required"},
		{Field: "Currency", Message: "must have length 3"},
		{Field: "Purpose", Message: "must be one of: wallet_topup package"},
	}, resp.Details)
}

func TestBindingError_MalformedBody(t *testing.T) {
	var v map[string]any
	err := json.Unmarshal([]byte(`{"amount":`), &v)
	require.Error(t, err)

	resp := BindingError(err)
	assert.Equal(t, "invalid request body", resp.Error)
	require.Len(t, resp.Details, 1)
	assert.Empty(t, resp.Details[0].Field)
}
