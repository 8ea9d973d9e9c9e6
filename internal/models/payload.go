package models

import (
	"encoding/json"
	"fmt"
)

// Payload names used by form definitions.
const (
	PayloadEmployee    = "employee"
	PayloadMedicalExam = "medical_exam"
	PayloadEducation   = "education"
	PayloadDirection   = "direction"
	PayloadUser        = "user"

	PayloadEmployeeDelete    = "employee_delete"
	PayloadMedicalExamDelete = "medical_exam_delete"
	PayloadEducationDelete   = "education_delete"
	PayloadPasswordChange    = "password_change"
)

var payloads = map[string]func() interface{}{
	PayloadEmployee:    func() interface{} { return &EmployeeForm{} },
	PayloadMedicalExam: func() interface{} { return &MedicalExamForm{} },
	PayloadEducation:   func() interface{} { return &EducationForm{} },
	PayloadDirection:   func() interface{} { return &DirectionForm{} },
	PayloadUser:        func() interface{} { return &UserForm{} },

	PayloadEmployeeDelete:    func() interface{} { return &EmployeeDeleteForm{} },
	PayloadMedicalExamDelete: func() interface{} { return &MedicalExamDeleteForm{} },
	PayloadEducationDelete:   func() interface{} { return &EducationDeleteForm{} },
	PayloadPasswordChange:    func() interface{} { return &PasswordChangeForm{} },
}

// KnownPayload reports whether name has a typed payload.
func KnownPayload(name string) bool {
	_, ok := payloads[name]
	return ok
}

// DecodePayload maps serialized form values onto the typed payload name.
func DecodePayload(name string, fields map[string]interface{}) (interface{}, error) {
	build, ok := payloads[name]
	if !ok {
		return nil, fmt.Errorf("unknown payload %q", name)
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	out := build()
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", name, err)
	}
	return out, nil
}
