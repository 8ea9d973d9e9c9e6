package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	statusSuccess = "SUCCESS"
	statusError   = "ERROR"
	generalField  = "general"
)

// Detail holds the messages the backend attached to one field.
type Detail struct {
	Field    string   `json:"field"`
	Messages []string `json:"messages"`
}

// Result is a decoded write response. Both the {status, id, description}
// shape and the older {success}/{error, details} shape are understood.
type Result struct {
	HTTPStatus    int                    `json:"-"`
	Status        string                 `json:"status,omitempty"`
	ID            int64                  `json:"id,omitempty"`
	Description   string                 `json:"description,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Success       string                 `json:"success,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Details       []Detail               `json:"details,omitempty"`
	IsCurrentUser bool                   `json:"is_current_user,omitempty"`
	Download      *Download              `json:"download,omitempty"`
	Body          map[string]interface{} `json:"-"`
}

// OK reports whether the backend accepted the write.
func (r *Result) OK() bool {
	if r == nil {
		return false
	}
	if r.Download != nil {
		return true
	}
	if r.Error != "" {
		return false
	}
	if r.Status != "" {
		return strings.EqualFold(r.Status, statusSuccess)
	}
	return r.Success != ""
}

// SuccessMessage prefers the form's own message and falls back to whatever
// the backend said.
func (r *Result) SuccessMessage(fallback string) string {
	for _, s := range []string{fallback, r.Success, r.Description, r.Message} {
		if s != "" {
			return s
		}
	}
	return ""
}

// RejectionMessage flattens a rejection into one line: general errors first,
// then every other field in the order the backend sent them, joined by "; ".
// Without details it falls back to error, description, message and finally
// the form default.
func (r *Result) RejectionMessage(fallback string) string {
	if r == nil {
		return fallback
	}
	parts := make([]string, 0)
	for _, d := range r.Details {
		if d.Field == generalField {
			parts = append(parts, d.Messages...)
		}
	}
	for _, d := range r.Details {
		if d.Field != generalField {
			parts = append(parts, d.Messages...)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "; ")
	}
	for _, s := range []string{r.Error, r.Description, r.Message} {
		if s != "" {
			return s
		}
	}
	return fallback
}

// ParseResult decodes a JSON write response.
func ParseResult(data []byte) (*Result, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}

	r := &Result{Body: body}
	r.Status = stringField(raw, "status")
	r.Description = stringField(raw, "description")
	r.Message = stringField(raw, "message")
	r.Success = stringField(raw, "success")
	r.Error = stringField(raw, "error")
	if v, ok := raw["id"]; ok {
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			r.ID, _ = n.Int64()
		}
	}
	if v, ok := raw["is_current_user"]; ok {
		_ = json.Unmarshal(v, &r.IsCurrentUser)
	}
	if v, ok := raw["details"]; ok {
		details, err := decodeDetails(v)
		if err != nil {
			return nil, err
		}
		r.Details = details
	}
	return r, nil
}

func stringField(raw map[string]json.RawMessage, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

// decodeDetails walks the details object token by token so the field order
// chosen by the backend survives.
func decodeDetails(data []byte) ([]Detail, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		if s, ok := tok.(string); ok && s != "" {
			return []Detail{{Field: generalField, Messages: []string{s}}}, nil
		}
		return nil, nil
	}

	out := make([]Detail, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
		key, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode details for %s: %w", key, err)
		}
		if msgs := messagesOf(value); len(msgs) > 0 {
			out = append(out, Detail{Field: key, Messages: msgs})
		}
	}
	return out, nil
}

func messagesOf(value json.RawMessage) []string {
	var single string
	if err := json.Unmarshal(value, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}
	var list []interface{}
	if err := json.Unmarshal(value, &list); err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]interface{}:
			if msg, ok := v["message"].(string); ok {
				out = append(out, msg)
			}
		case nil:
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
