package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidator_CollectsMessages(t *testing.T) {
	var v Validator

	v.Check(true, "never added")
	assert.False(t, v.HasErrors())

	v.Check(false, "Email is required")
	v.AddError("Password is too short")

	assert.True(t, v.HasErrors())
	assert.Equal(t, []string{"Email is required", "Password is too short"}, v.Errors)
}

func TestIsEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"ada@example.com", true},
		{"first.last+tag@sub.example.org", true},
		{"ada@", false},
		{"@example.com", false},
		{"ada example.com", false},
		{"ada@example", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmail(tt.email))
		})
	}
}

func TestPasswordLength(t *testing.T) {
	assert.False(t, MinRunes("short", MinPasswordLength))
	assert.True(t, MinRunes("longenough", MinPasswordLength))
	assert.True(t, MinRunes("çççççççç", MinPasswordLength))
}

func TestIsEthAddress(t *testing.T) {
	assert.True(t, IsEthAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"))
	assert.False(t, IsEthAddress("5FbDB2315678afecb367f032d93F642f64180aa3"))
	assert.False(t, IsEthAddress("0x5FbDB2315678afecb367f032d93F642f64180aa"))
	assert.False(t, IsEthAddress("0xZZbDB2315678afecb367f032d93F642f64180aa3"))
}

func TestIsTxHash(t *testing.T) {
	assert.True(t, IsTxHash("0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"))
	assert.False(t, IsTxHash("0x88df0164"))
	assert.False(t, IsTxHash("0x5FbDB2315678afecb367f032d93F642f64180aa3"))
}

func TestPermittedValue(t *testing.T) {
	assert.True(t, PermittedValue("bank", "user", "bank"))
	assert.False(t, PermittedValue("admin", "user", "bank"))
}

func TestBetween(t *testing.T) {
	assert.True(t, Between(12, 1, 360))
	assert.False(t, Between(0, 1, 360))
	assert.True(t, Between(4.5, 0, 100))
}

func TestMaxDecimalPlaces(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"100", true},
		{"100.5", true},
		{"100.25", true},
		{"12.500", true},
		{"0.004", false},
		{"1.999", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxDecimalPlaces(decimal.RequireFromString(tt.value), 2), tt.value)
	}
}
