package upstream

import (
	"fmt"

	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

// DecodeEntity reduces a detail response to one entity. The backend answers
// with {data: [x]}, {data: x}, {<unwrap>: x} or a flat x depending on the
// endpoint; all of them normalize to x.
func DecodeEntity(body map[string]interface{}, unwrap string) (map[string]interface{}, error) {
	if body == nil {
		return nil, appErrors.Clone(appErrors.ErrUnexpectedResponse, "empty entity response")
	}
	var inner interface{} = body
	if unwrap != "" {
		if v, ok := body[unwrap]; ok {
			inner = v
		}
	} else if v, ok := body["data"]; ok {
		inner = v
	}

	switch v := inner.(type) {
	case []interface{}:
		if len(v) == 0 {
			return nil, appErrors.Clone(appErrors.ErrUnexpectedResponse, "entity not present in response")
		}
		entity, ok := v[0].(map[string]interface{})
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrUnexpectedResponse, fmt.Sprintf("entity has type %T", v[0]))
		}
		return entity, nil
	case map[string]interface{}:
		if _, wrapped := v["status"]; wrapped && len(v) > 0 && unwrap == "" {
			flat := make(map[string]interface{}, len(v))
			for k, val := range v {
				if k != "status" {
					flat[k] = val
				}
			}
			return flat, nil
		}
		return v, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrUnexpectedResponse, fmt.Sprintf("entity has type %T", inner))
	}
}

// RemoteFile is an attachment already persisted by the backend.
type RemoteFile struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
	UploadedAt string `json:"uploaded_at,omitempty"`
	Size       string `json:"size,omitempty"`
}

// DecodeFiles reads the file list of a {files: [...]} or {attachments: [...]} body.
func DecodeFiles(body map[string]interface{}) []RemoteFile {
	raw, ok := body["files"].([]interface{})
	if !ok {
		raw, _ = body["attachments"].([]interface{})
	}
	out := make([]RemoteFile, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		f := RemoteFile{
			Name:       str(m["name"]),
			URL:        str(m["url"]),
			UploadedAt: str(m["uploaded_at"]),
			Size:       str(m["size"]),
		}
		if id, ok := m["id"].(float64); ok {
			f.ID = int64(id)
		}
		out = append(out, f)
	}
	return out
}

func str(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return fmt.Sprint(t)
	}
}
