package forms

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/guard-forms/internal/validation"
)

var today = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func mustForm(t *testing.T, id string) *Definition {
	t.Helper()
	defs, err := LoadFS(EmbeddedFS())
	require.NoError(t, err)
	def, ok := defs[id]
	require.True(t, ok, "form %s not embedded", id)
	return def
}

func TestEmbeddedDefinitionsLoad(t *testing.T) {
	defs, err := LoadFS(EmbeddedFS())
	require.NoError(t, err)

	for _, id := range []string{
		"employee_add", "employee_edit", "med_add", "med_edit",
		"edu_add", "edu_edit", "direction", "user_add", "user_edit",
	} {
		assert.Contains(t, defs, id)
	}
	assert.True(t, defs["employee_edit"].NeedsPreload())
	assert.False(t, defs["employee_add"].NeedsPreload())
}

func TestValidateReportsEveryInvalidField(t *testing.T) {
	def := mustForm(t, "employee_add")
	values := def.Defaults()

	report := def.Validate(values, today)

	assert.False(t, report.Valid)
	assert.Equal(t, "FIO", report.FirstInvalid)
	names := make([]string, 0)
	for _, f := range report.Invalid() {
		names = append(names, f.Field)
	}
	if diff := cmp.Diff([]string{"FIO", "gender", "birthday", "position"}, names); diff != "" {
		t.Fatalf("invalid fields mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Поле обязательно для заполнения", report.Errors()["FIO"])
}

func TestValidateNormalizesAndBuildsPayload(t *testing.T) {
	def := mustForm(t, "employee_add")
	values := def.Defaults()
	values["FIO"] = "  иванов   иван "
	values["gender"] = "M"
	values["birthday"] = "15.06.1990"
	values["position"] = "Учитель"
	values["is_edu"] = "on"

	report := def.Validate(values, today)
	require.True(t, report.Valid, report.Errors())

	want := map[string]interface{}{
		"FIO":        "Иванов Иван",
		"gender":     "M",
		"birthday":   "1990-06-15",
		"position":   "Учитель",
		"department": "",
		"oms_number": "",
		"dms_number": "",
		"status":     "W",
		"is_edu":     true,
	}
	if diff := cmp.Diff(want, def.Payload(report)); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDirectionPanelsAndPolicies(t *testing.T) {
	def := mustForm(t, "direction")

	values := def.Defaults()
	visible := def.Visible(values)
	assert.True(t, visible["medicalOrganization"])
	assert.False(t, visible["employerName"])
	assert.False(t, visible["OMSNumber"])

	values["examinationType"] = "psychiatric"
	visible = def.Visible(values)
	assert.False(t, visible["medicalOrganization"])
	assert.True(t, visible["employerName"])
	assert.True(t, visible["FIO"])

	report := def.Validate(values, today)
	assert.Equal(t, "Выберите хотя бы один тип полиса (ОМС или ДМС)", report.Errors()["hasOMS"])
	_, hiddenReported := report.Errors()["medicalOrganization"]
	assert.False(t, hiddenReported)

	values["hasOMS"] = "true"
	report = def.Validate(values, today)
	assert.NotContains(t, report.Errors(), "hasOMS")
	assert.Equal(t, "Поле обязательно для заполнения", report.Errors()["OMSNumber"])

	for _, tc := range []struct{ panel, field string }{
		{"periodic", "directionDate"},
		{"preliminary", "directionDate"},
		{"psychiatric", "directionDatePsych"},
	} {
		values["examinationType"] = tc.panel
		values[tc.field] = "2030-01-01"
		report = def.Validate(values, today)
		assert.Equal(t, validation.CodeFuture, fieldCode(report, tc.field), tc.panel)

		values[tc.field] = "2024-06-15"
		report = def.Validate(values, today)
		assert.NotContains(t, report.Errors(), tc.field, tc.panel)
	}
}

func fieldCode(r Report, field string) string {
	for _, f := range r.Fields {
		if f.Field == field {
			return f.Code
		}
	}
	return ""
}

func TestDirectionPayloadTransforms(t *testing.T) {
	def := mustForm(t, "direction")
	report := Report{Values: map[string]string{
		"examinationType":            "periodic",
		"FIO":                        "Сидоров Сидор",
		"hasOMS":                     "true",
		"hasDMS":                     "false",
		"OMSNumber":                  "1234567890123456",
		"employerRepresentativeName": "Петров Пётр Петрович",
		"hazardFactors":              "",
	}}

	payload := def.Payload(report)

	assert.Equal(t, "Петров П. П.", payload["employerRepresentativeName"])
	assert.Equal(t, "-", payload["hazardFactors"])
	assert.Equal(t, true, payload["hasOMS"])
	assert.Equal(t, false, payload["hasDMS"])
	assert.NotContains(t, payload, "DMSNumber")
}

func TestUserAddPasswordToggle(t *testing.T) {
	def := mustForm(t, "user_add")
	values := def.Defaults()
	values["username"] = "ivanov"

	assert.False(t, def.Visible(values)["password1"])
	report := def.Validate(values, today)
	assert.Equal(t, "Пожалуйста, введите email", report.Errors()["email"])

	values["generate_password"] = "false"
	assert.True(t, def.Visible(values)["password1"])
	assert.False(t, def.Required("email", values))
	report = def.Validate(values, today)
	assert.NotContains(t, report.Errors(), "email")
	assert.Equal(t, "Введите пароль", report.Errors()["password1"])
}

func TestUserEditExclusiveCheckboxes(t *testing.T) {
	def := mustForm(t, "user_edit")
	values := map[string]string{"generate_password": "true", "change_password": "on"}

	applied := def.ApplyChange(values, "change_password")
	assert.Equal(t, "false", applied["generate_password"])

	values = map[string]string{"username": "admin", "email": "a@b.ru", "generate_password": "true", "change_password": "true",
		"password1": "Secret123", "password2": "Secret123"}
	report := def.Validate(values, today)
	assert.Equal(t, msgExclusive, report.Errors()["change_password"])
	assert.NotContains(t, report.Errors(), "generate_password")
}

func TestInputFiltersAndRevalidatesDependents(t *testing.T) {
	def := mustForm(t, "user_add")
	values := def.Defaults()
	values["generate_password"] = "false"
	values["password2"] = "Abcdefg1"

	res, err := def.Input("password1", "Abcdefg1й", values, today)
	require.NoError(t, err)

	assert.Equal(t, "Abcdefg1", res.Value)
	assert.True(t, res.Stripped)
	assert.Equal(t, validation.PasswordWarning, res.Warning)
	assert.True(t, res.Result.Valid)
	assert.Equal(t, 8, res.Counter)
	require.Len(t, res.Dependents, 1)
	assert.Equal(t, "password2", res.Dependents[0].Field)
	assert.True(t, res.Dependents[0].Valid)
}

func TestInputUncheckingToggleClearsFields(t *testing.T) {
	def := mustForm(t, "direction")
	values := def.Defaults()
	values["hasOMS"] = "true"
	values["OMSNumber"] = "123"

	res, err := def.Input("hasOMS", "false", values, today)
	require.NoError(t, err)

	assert.Equal(t, "", res.Values["OMSNumber"])
	assert.False(t, res.Visible["OMSNumber"])
	assert.Empty(t, res.Dependents)
}

func TestInputDateRangeIsBidirectional(t *testing.T) {
	def := mustForm(t, "med_add")
	values := map[string]string{"exam_type": "periodic", "expiry_date": "2024-06-01"}

	res, err := def.Input("exam_date", "10.06.2024", values, today)
	require.NoError(t, err)

	assert.True(t, res.Result.Valid)
	require.Len(t, res.Dependents, 1)
	assert.Equal(t, "expiry_date", res.Dependents[0].Field)
	assert.Equal(t, "Дата окончания не может быть раньше даты прохождения", res.Dependents[0].Message)

	_, err = def.Input("missing", "x", values, today)
	assert.Error(t, err)
}

func TestPrefillMapsSnapshot(t *testing.T) {
	def := mustForm(t, "employee_edit")
	values := def.Prefill(map[string]interface{}{
		"FIO":        "Иванова Мария Петровна",
		"gender":     "Женский",
		"birthday":   "01.02.1990",
		"status":     "W",
		"is_edu":     true,
		"oms_number": nil,
		"position":   "Завуч",
	})

	assert.Equal(t, "F", values["gender"])
	assert.Equal(t, "1990-02-01", values["birthday"])
	assert.Equal(t, "true", values["is_edu"])
	assert.Equal(t, "", values["oms_number"])
	assert.Equal(t, "Завуч", values["position"])

	user := mustForm(t, "user_edit")
	values = user.Prefill(map[string]interface{}{"last_name": "Петров", "first_name": "Пётр", "is_active": false})
	assert.Equal(t, "Петров Пётр", values["full_name"])
	assert.Equal(t, "false", values["is_active"])
}

func TestParseDefinitionRejectsBrokenInput(t *testing.T) {
	cases := map[string]string{
		"unknown kind": `
id: x
fields: [{name: a, kind: nope}]
submit: {method: post_json, endpoint: /x}
`,
		"unknown key": `
id: x
fields: [{name: a, kind: text, colour: red}]
submit: {method: post_json, endpoint: /x}
`,
		"dangling reference": `
id: x
fields: [{name: a, kind: date_to, after: b}]
submit: {method: post_json, endpoint: /x}
`,
		"bad method": `
id: x
fields: [{name: a, kind: text}]
submit: {method: put, endpoint: /x}
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "Иванов И. И.", Initials("Иванов Иван Иванович"))
	assert.Equal(t, "Иванов И.", Initials("Иванов Иван"))
	assert.Equal(t, "Иванов", Initials("Иванов"))
	assert.Equal(t, "", Initials("  "))
}

const minimalForm = `
id: note
title: Заметка
entity: note
fields:
  - name: text
    kind: text
    required: true
submit:
  method: post_json
  endpoint: /notes/
`

func TestRegistryReloadKeepsPreviousSetOnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.yaml"), []byte(minimalForm), 0o644))

	reg, err := NewRegistry(dir, nil)
	require.NoError(t, err)
	_, ok := reg.Get("note")
	require.True(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("id: [oops"), 0o644))
	assert.Error(t, reg.Reload())
	_, ok = reg.Get("note")
	assert.True(t, ok)

	embedded, err := NewRegistry("", nil)
	require.NoError(t, err)
	assert.Len(t, embedded.List(), 15)
	assert.Equal(t, "admin_change_password", embedded.List()[0].ID)
}
