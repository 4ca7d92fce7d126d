package domain

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// TargetID is assigned by the registry when a target is created and is never
// handed out twice within one process.
type TargetID uint64

func (id TargetID) String() string { return fmt.Sprintf("%d", uint64(id)) }

type Target struct {
	ID          TargetID
	Name        string
	URL         string
	Status      Status
	LastChecked time.Time
}

// record is the on-disk / wire shape of a Target. status is one of
// "Online", "Offline" or "Error" and is omitted until the first completed
// probe; the other optional fields are extras older readers ignore.
type record struct {
	ID          TargetID        `json:"id,omitempty"`
	Name        string          `json:"name"`
	URL         string          `json:"url"`
	Status      json.RawMessage `json:"status,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	LastChecked *time.Time      `json:"last_checked,omitempty"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	st := t.Status
	if st.Kind == StatusChecking {
		st = Unknown()
	}
	r := record{
		ID:   t.ID,
		Name: t.Name,
		URL:  t.URL,
	}
	if st.Kind != StatusUnknown {
		r.Status, _ = json.Marshal(st.Label())
	}
	if st.Kind == StatusError {
		r.StatusCode = st.Code
	}
	if !t.LastChecked.IsZero() {
		ts := t.LastChecked.UTC()
		r.LastChecked = &ts
	}
	return json.Marshal(r)
}

func (t *Target) UnmarshalJSON(b []byte) error {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	st, err := decodeStatus(r.Status, r.StatusCode)
	if err != nil {
		return err
	}
	*t = Target{ID: r.ID, Name: r.Name, URL: r.URL, Status: st}
	if r.LastChecked != nil {
		t.LastChecked = *r.LastChecked
	}
	return nil
}

// decodeStatus accepts the label form ("Online", "Error" + status_code) and
// the older tagged form written by the desktop tool ({"Error": 503},
// "Unchecked").
func decodeStatus(raw json.RawMessage, code int) (Status, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Unknown(), nil
	}
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		return ParseStatus(label, code)
	}
	var tagged map[string]int
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return Status{}, fmt.Errorf("status: %w", err)
	}
	if c, ok := tagged["Error"]; ok && len(tagged) == 1 {
		return ErrorCode(c), nil
	}
	return Status{}, fmt.Errorf("status: unsupported value %s", string(raw))
}

// Summary counts statuses over one snapshot. Pending covers Unknown and
// Checking.
type Summary struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
	Error   int `json:"error"`
	Pending int `json:"pending"`
}

func Summarize(ts []Target) Summary {
	s := Summary{Total: len(ts)}
	for _, t := range ts {
		switch t.Status.Kind {
		case StatusOnline:
			s.Online++
		case StatusOffline:
			s.Offline++
		case StatusError:
			s.Error++
		case StatusUnknown, StatusChecking:
			s.Pending++
		}
	}
	return s
}

// NormalizeURL trims the input, defaults the scheme to http, lowercases
// scheme and host and drops the scheme's default port.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host, port := u.Hostname(), u.Port()
	host = strings.ToLower(host)
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}
	if u.Path == "/" && u.RawQuery == "" && u.Fragment == "" {
		u.Path = ""
	}
	return u.String()
}

// IsHTTPURL reports whether raw parses as an absolute http or https URL with a host.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}
