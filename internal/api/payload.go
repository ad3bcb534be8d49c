package api

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// flexString decodes a JSON string or number into its text form. Chat
// clients send user IDs and thresholds either way.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.Errorf("expected a string or number, got %s", data)
		}
		*f = flexString(n.String())
	}
	return nil
}

// Or returns fallback when f is blank.
func (f flexString) Or(fallback string) string {
	if s := strings.TrimSpace(string(f)); s != "" {
		return s
	}
	return fallback
}
