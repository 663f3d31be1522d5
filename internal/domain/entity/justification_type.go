package entity

import (
	"fmt"
	"strings"
	"time"
)

// JustificationType describes a category of justification and its extra form fields.
type JustificationType struct {
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	DynamicFields []DynamicField `json:"dynamic_fields"`
	CreatedAt     time.Time      `json:"created_at"`
}

// DynamicField is the metadata for one type-specific value.
type DynamicField struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// ValidateValues checks values against the type's field metadata: required
// keys must be present and non-empty, and a value for a field with options
// must be one of them.
func (t *JustificationType) ValidateValues(values map[string]any) error {
	for _, f := range t.DynamicFields {
		v, ok := values[f.Key]
		if !ok || isEmptyValue(v) {
			if f.Required {
				return fmt.Errorf("dynamic field %q is required", f.Key)
			}
			continue
		}
		if len(f.Options) > 0 && !containsOption(f.Options, fmt.Sprint(v)) {
			return fmt.Errorf("dynamic field %q must be one of %v", f.Key, f.Options)
		}
	}
	return nil
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

func containsOption(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
