package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// FlexString decodes a JSON string or number into its string form. The
// gateway sends ids both ways.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// FlexBool decodes true/false, 1/0 and their quoted forms.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(strings.TrimSpace(string(data)), `"`) {
	case "1", "true":
		*f = true
	default:
		*f = false
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.DateTime,
	time.DateOnly,
}

// ParseTimestamp accepts the timestamp formats the gateway emits and returns
// the zero time for anything else.
func ParseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
