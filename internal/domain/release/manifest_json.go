package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

var (
	errNotAnObject = errors.New("manifest is not a JSON object")
	errBadPubDate  = errors.New("unrecognized pub_date")
)

const (
	fieldCurrentRelease = "currentRelease"
	fieldReleases       = "releases"
)

// pubDateLayouts are the ISO-8601 forms accepted for pub_date, tried in order.
//
//nolint:gochecknoglobals // Immutable parse table.
var pubDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02",
}

// ParsePubDate parses an ISO-8601 timestamp as written by update servers.
// Offsets may omit the colon; a missing offset means UTC.
func ParsePubDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", errBadPubDate, s)
}

// UnmarshalJSON decodes the document, keeping unknown top-level fields.
// Only a document that is not an object, or whose currentRelease or releases
// have the wrong JSON type, is rejected.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if fields == nil {
		return errNotAnObject
	}

	*m = Manifest{}

	if raw, ok := fields[fieldCurrentRelease]; ok {
		if err := json.Unmarshal(raw, &m.CurrentRelease); err != nil {
			return fmt.Errorf("%s: %w", fieldCurrentRelease, err)
		}

		delete(fields, fieldCurrentRelease)
	}

	if raw, ok := fields[fieldReleases]; ok {
		if err := json.Unmarshal(raw, &m.Releases); err != nil {
			return fmt.Errorf("%s: %w", fieldReleases, err)
		}

		delete(fields, fieldReleases)
	}

	if len(fields) > 0 {
		m.extra = fields
	}

	return nil
}

// MarshalJSON encodes the document together with the preserved unknown fields.
func (m Manifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.extra)+2)
	maps.Copy(out, m.extra)

	current, err := json.Marshal(m.CurrentRelease)
	if err != nil {
		return nil, err
	}

	releases := m.Releases
	if releases == nil {
		releases = []ReleaseEntry{}
	}

	list, err := json.Marshal(releases)
	if err != nil {
		return nil, err
	}

	out[fieldCurrentRelease] = current
	out[fieldReleases] = list

	return json.Marshal(out)
}

// UnmarshalJSON never fails on a syntactically valid entry: fields it cannot
// interpret are left empty and the original JSON is kept for re-encoding.
func (e *ReleaseEntry) UnmarshalJSON(data []byte) error {
	*e = ReleaseEntry{raw: append(json.RawMessage(nil), data...)}

	var fields struct {
		Version  json.RawMessage `json:"version"`
		UpdateTo json.RawMessage `json:"updateTo"`
	}

	if err := json.Unmarshal(data, &fields); err != nil {
		return nil //nolint:nilerr // Entries of another shape stay opaque.
	}

	_ = json.Unmarshal(fields.Version, &e.Version)

	if len(fields.UpdateTo) > 0 {
		_ = json.Unmarshal(fields.UpdateTo, &e.UpdateTo)
	}

	return nil
}

// MarshalJSON writes the stored JSON of an untouched entry, or the typed fields.
func (e ReleaseEntry) MarshalJSON() ([]byte, error) {
	if e.raw != nil {
		return e.raw, nil
	}

	type plain struct {
		Version  string   `json:"version"`
		UpdateTo UpdateTo `json:"updateTo"`
	}

	return json.Marshal(plain{Version: e.Version, UpdateTo: e.UpdateTo})
}

// UnmarshalJSON accepts any ISO-8601 pub_date; an unparsable one leaves PubDate zero.
func (u *UpdateTo) UnmarshalJSON(data []byte) error {
	var fields struct {
		Version string `json:"version"`
		PubDate string `json:"pub_date"`
		Notes   string `json:"notes"`
		Name    string `json:"name"`
		URL     string `json:"url"`
	}

	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*u = UpdateTo{
		Version: fields.Version,
		Notes:   fields.Notes,
		Name:    fields.Name,
		URL:     fields.URL,
	}

	if fields.PubDate != "" {
		u.PubDate, _ = ParsePubDate(fields.PubDate)
	}

	return nil
}
