package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMidtransSignature(t *testing.T) {
	const key = "SB-Mid-server-abc"
	sig := MidtransSignature(key, "order-1", "200", "32956.00")
	assert.Len(t, sig, 128)

	assert.True(t, ValidMidtransSignature(key, "order-1", "200", "32956.00", sig))
	assert.False(t, ValidMidtransSignature(key, "order-1", "200", "32956", sig), "gross amount is part of the digest")
	assert.False(t, ValidMidtransSignature("other-key", "order-1", "200", "32956.00", sig))
	assert.False(t, ValidMidtransSignature(key, "order-1", "200", "32956.00", ""))

	ms := NewMidtransService(&MidtransConfig{ServerKey: key, ClientKey: "SB-Mid-client-abc"})
	assert.True(t, ms.ValidateSignature("order-1", "200", "32956.00", sig))
}

func TestMidtransValidateConfig(t *testing.T) {
	assert.Error(t, NewMidtransService(&MidtransConfig{}).ValidateConfig())
	assert.Error(t, NewMidtransService(&MidtransConfig{ServerKey: "s"}).ValidateConfig())

	ms := NewMidtransService(&MidtransConfig{ServerKey: "s", ClientKey: "c"})
	assert.NoError(t, ms.ValidateConfig())
	assert.Equal(t, "c", ms.ClientKey())
}
