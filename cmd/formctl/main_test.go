package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/guard-forms/internal/forms"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFormsListsEmbeddedDefinitions(t *testing.T) {
	out, err := execute(t, "forms")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "user_add")
	assert.Contains(t, out, "post_multipart /admin/add/")
	assert.Contains(t, out, "employee_edit")
}

func TestValidatePrintsReport(t *testing.T) {
	out, err := execute(t, "validate", "user_add", "username=ivanov", "email=bad", "full_name=иванов иван")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first invalid field email")

	var report forms.Report
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.False(t, report.Valid)
	assert.Equal(t, "email", report.FirstInvalid)
	assert.Equal(t, "Иванов Иван", report.Values["full_name"])
	_, hidden := report.Values["password1"]
	assert.False(t, hidden, "password fields are hidden while generate_password is on")
	assert.Equal(t, "Введите корректный email (например, example@domain.com)", report.Errors()["email"])
}

func TestValidateAcceptsValidValues(t *testing.T) {
	out, err := execute(t, "validate", "user_add", "username=ivanov", "email=ivanov@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "valid: true")
}

func TestValidateRejectsBadArguments(t *testing.T) {
	_, err := execute(t, "validate", "nope")
	assert.EqualError(t, err, `unknown form "nope"`)

	_, err = execute(t, "validate", "user_add", "username")
	assert.EqualError(t, err, `expected field=value, got "username"`)

	_, err = execute(t, "validate", "user_add", "login=x")
	assert.EqualError(t, err, `form user_add has no field "login"`)

	_, err = execute(t, "validate", "--today", "17.10.2026", "user_add")
	assert.ErrorContains(t, err, "invalid --today")
}

func TestValidateUsesDefinitionsDir(t *testing.T) {
	dir := t.TempDir()
	def := []byte(`id: ping
title: Ping
entity: user
fields:
  - name: email
    label: Email
    kind: email
    required: true
submit:
  method: post_json
  endpoint: /ping/
  payload: user
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ping.yaml"), def, 0o600))

	out, err := execute(t, "--definitions", dir, "forms")
	require.NoError(t, err)
	assert.Contains(t, out, "ping")
	assert.NotContains(t, out, "user_add")

	_, err = execute(t, "-d", dir, "validate", "ping")
	assert.ErrorContains(t, err, "first invalid field email")
}

func TestKindsCountsFieldUsage(t *testing.T) {
	dir := t.TempDir()
	def := []byte(`id: ping
title: Ping
entity: user
fields:
  - name: email
    label: Email
    kind: email
  - name: backup
    label: Backup email
    kind: email
submit:
  method: post_json
  endpoint: /ping/
  payload: user
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ping.yaml"), def, 0o600))

	out, err := execute(t, "-d", dir, "kinds")
	require.NoError(t, err)
	counts := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[1:] {
		cols := strings.Fields(line)
		require.Len(t, cols, 2)
		counts[cols[0]] = cols[1]
	}
	assert.Equal(t, "2", counts["email"])
	assert.Equal(t, "0", counts["ogrn"])
	assert.Contains(t, counts, "full_name")
}

func TestNormalizeName(t *testing.T) {
	out, err := execute(t, "normalize-name", "  петрова-водкина   анна  ")
	require.NoError(t, err)
	assert.Equal(t, "Петрова-Водкина Анна\n", out)

	out, err = execute(t, "normalize-name", "ivanov ivan")
	require.Error(t, err)
	assert.Equal(t, "Ivanov Ivan\n", out)
}
