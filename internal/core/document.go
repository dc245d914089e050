package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ScanDocument mirrors the result document of a URL scanning provider.
// Every field is optional and decodes leniently, so a sparse or oddly shaped
// document yields zero values rather than a decoding failure.
type ScanDocument struct {
	UUID  Text       `json:"uuid"`
	Time  Text       `json:"time"`
	Task  *ScanTask  `json:"task,omitempty"`
	Page  *ScanPage  `json:"page,omitempty"`
	Stats *ScanStats `json:"stats,omitempty"`
	Lists *ScanLists `json:"lists,omitempty"`
}

// ScanTask describes the submitted scan
type ScanTask struct {
	UUID Text `json:"uuid"`
	Time Text `json:"time"`
	URL  Text `json:"url"`
}

// ScanPage describes the primary page that was loaded
type ScanPage struct {
	URL     Text `json:"url"`
	Domain  Text `json:"domain"`
	Title   Text `json:"title"`
	Server  Text `json:"server"`
	IP      Text `json:"ip"`
	Country Text `json:"country"`
}

// ScanStats holds aggregate behavioural counters
type ScanStats struct {
	Malicious Flag  `json:"malicious"`
	Requests  Count `json:"requests"`
	Domains   Count `json:"domains"`
}

// ScanLists holds the entities the provider matched against its lists
type ScanLists struct {
	IPs        StringList `json:"ips"`
	Countries  StringList `json:"countries"`
	Domains    StringList `json:"domains"`
	URLs       StringList `json:"urls"`
	Categories StringList `json:"categories"`
}

// ID returns the scan identifier from the top level or the task block
func (d *ScanDocument) ID() string {
	if d == nil {
		return ""
	}
	if d.UUID != "" {
		return string(d.UUID)
	}
	if d.Task != nil {
		return string(d.Task.UUID)
	}
	return ""
}

// ScannedAt returns the scan time from the top level or the task block
func (d *ScanDocument) ScannedAt() string {
	if d == nil {
		return ""
	}
	if d.Time != "" {
		return string(d.Time)
	}
	if d.Task != nil {
		return string(d.Task.Time)
	}
	return ""
}

// Flag decodes any JSON value into a truthiness bit.
// Numbers are true when non-zero, strings when non-empty and not "false" or "0".
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		*f = false
		return nil
	}
	switch t := v.(type) {
	case bool:
		*f = Flag(t)
	case float64:
		*f = t != 0
	case string:
		s := strings.TrimSpace(strings.ToLower(t))
		*f = s != "" && s != "false" && s != "0"
	case []interface{}:
		*f = len(t) > 0
	default:
		*f = false
	}
	return nil
}

// Count decodes a JSON number or numeric string, anything else is zero
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		*c = 0
		return nil
	}
	switch t := v.(type) {
	case float64:
		*c = Count(int(t))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			n = 0
		}
		*c = Count(n)
	default:
		*c = 0
	}
	return nil
}

// Text decodes a JSON string or number, anything else is empty
type Text string

func (s *Text) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	switch t := v.(type) {
	case string:
		*s = Text(t)
	case float64:
		*s = Text(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		*s = ""
	}
	return nil
}

// StringList decodes a JSON array into strings. Non-string elements are kept
// as their compact JSON text so they still count as entries. A non-array value
// decodes to an empty list.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, item); err != nil {
			out = append(out, string(item))
			continue
		}
		out = append(out, buf.String())
	}
	*l = out
	return nil
}
