package service

import (
	"encoding/json"
	"strings"
	"time"

	"planify/internal/models"
	"planify/internal/validation"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// applyProfile copies whitelisted values from payload onto user. Values that
// cannot be decoded are reported per field; range and format checks happen
// when the record is saved.
func applyProfile(user *models.User, payload map[string]json.RawMessage) []models.FieldError {
	var fields []models.FieldError
	invalid := func(key string) {
		fields = append(fields, models.FieldError{Field: key, Message: validation.Label(key) + " is invalid"})
	}

	for _, key := range []string{"firstName", "lastName", "bio", "phone", "dateOfBirth"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}

		switch key {
		case "firstName", "lastName":
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				invalid(key)
				continue
			}
			v = validation.CleanText(v)
			if key == "firstName" {
				user.FirstName = v
			} else {
				user.LastName = v
			}

		case "bio":
			v, ok := optionalString(raw)
			if !ok {
				invalid(key)
				continue
			}
			if v != nil {
				cleaned := validation.CleanText(*v)
				v = &cleaned
			}
			user.Bio = emptyToNil(v)

		case "phone":
			v, ok := optionalString(raw)
			if !ok {
				invalid(key)
				continue
			}
			user.Phone = emptyToNil(v)

		case "dateOfBirth":
			v, ok := optionalString(raw)
			if !ok {
				invalid(key)
				continue
			}
			if v = emptyToNil(v); v == nil {
				user.DateOfBirth = nil
				continue
			}
			dob, ok := parseDate(*v)
			if !ok {
				invalid(key)
				continue
			}
			user.DateOfBirth = &dob
		}
	}
	return fields
}

// optionalString decodes a JSON string or null.
func optionalString(raw json.RawMessage) (*string, bool) {
	if strings.TrimSpace(string(raw)) == "null" {
		return nil, true
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return &v, true
}

func emptyToNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseDate(v string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
