package models

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/guard-forms/internal/validation"
)

func TestUserDisplayName(t *testing.T) {
	cases := []struct {
		name string
		user UserAccount
		want string
	}{
		{"full", UserAccount{LastName: "иванов", FirstName: "Иван Петрович"}, "Иванов И.П."},
		{"no patronymic", UserAccount{LastName: "Петрова", FirstName: "анна"}, "Петрова А."},
		{"username fallback", UserAccount{Username: "admin"}, "Admin"},
		{"capped", UserAccount{LastName: "Константинопольский-Задунайский", FirstName: "Пётр"}, "Константинопольский-"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.user.DisplayName())
		})
	}
}

func TestDecodePayloadGuardsOutgoingData(t *testing.T) {
	v := validator.New()
	today := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	require.NoError(t, validation.RegisterTags(v, func() time.Time { return today }))

	assert.True(t, KnownPayload(PayloadMedicalExam))
	assert.False(t, KnownPayload("salary"))

	out, err := DecodePayload(PayloadEmployee, map[string]interface{}{
		"FIO":        "Иванов Иван Иванович",
		"gender":     "M",
		"birthday":   "1990-05-01",
		"position":   "Инженер",
		"oms_number": "1234567890123456",
		"status":     "W",
		"is_edu":     true,
	})
	require.NoError(t, err)
	emp, ok := out.(*EmployeeForm)
	require.True(t, ok)
	assert.True(t, emp.IsEdu)
	assert.NoError(t, v.Struct(emp))

	emp.FIO = "Ivanov Ivan"
	assert.Error(t, v.Struct(emp))

	_, err = DecodePayload("salary", nil)
	assert.EqualError(t, err, `unknown payload "salary"`)

	_, err = DecodePayload(PayloadEmployee, map[string]interface{}{"is_edu": "yes"})
	assert.Error(t, err)
}
