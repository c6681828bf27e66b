package jsonstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
)

// shape is one accepted request body layout. An empty key sends the inner
// value bare.
type shape struct {
	name string
	key  string
}

// route describes how one resource is reached.
type route struct {
	// field is the key of the canonical document that holds the payload.
	field string
	// aliases are endpoint paths tried in order.
	aliases []string
	// shapes are body layouts tried in order; the first one is canonical.
	shapes []shape
}

var routes = map[document.Name]route{
	document.Semesters: {
		aliases: []string{"/api/semesters"},
		shapes:  []shape{{name: "canonical"}},
	},
	document.Subjects: {
		aliases: []string{"/api/subjects"},
		shapes:  []shape{{name: "canonical"}},
	},
	document.Timetables: {
		field:   "timetables",
		aliases: []string{"/api/timetables", "/api/timetable"},
		shapes: []shape{
			{name: "canonical", key: "timetables"},
			{name: "by-semester", key: "timetablesBySemester"},
			{name: "bare"},
		},
	},
	document.Reminders: {
		field:   "reminders",
		aliases: []string{"/api/reminders"},
		shapes: []shape{
			{name: "canonical", key: "reminders"},
			{name: "by-semester", key: "remindersBySemester"},
		},
	},
}

func routeFor(name document.Name) (route, error) {
	r, ok := routes[name]
	if !ok {
		return route{}, fmt.Errorf("jsonstore: unknown resource %q", name)
	}
	return r, nil
}

// bodies renders doc in every shape of r.
func (r route) bodies(doc any) ([][]byte, error) {
	canonical, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", doc, err)
	}
	if r.field == "" {
		return [][]byte{canonical}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(canonical, &obj); err != nil {
		return nil, fmt.Errorf("split %T: %w", doc, err)
	}
	inner, ok := obj[r.field]
	if !ok || bytes.Equal(bytes.TrimSpace(inner), []byte("null")) {
		inner = json.RawMessage("{}")
	}

	out := make([][]byte, 0, len(r.shapes))
	for _, s := range r.shapes {
		if s.key == "" {
			out = append(out, inner)
			continue
		}
		body, err := json.Marshal(map[string]json.RawMessage{s.key: inner})
		if err != nil {
			return nil, err
		}
		out = append(out, body)
	}
	return out, nil
}

// canonicalize rewrites a response body in any accepted shape into the
// canonical layout. Keys are checked in shape order; an object without any
// known key is taken as the bare map.
func (r route) canonicalize(body []byte) []byte {
	if r.field == "" {
		return body
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return body
	}

	inner := json.RawMessage("")
	for _, s := range r.shapes {
		if s.key == "" {
			continue
		}
		if v, ok := obj[s.key]; ok {
			inner = v
			break
		}
	}
	if len(inner) == 0 {
		if !r.acceptsBare() {
			return body
		}
		inner = body
	}

	out, err := json.Marshal(map[string]json.RawMessage{r.field: inner})
	if err != nil {
		return body
	}
	return out
}

func (r route) acceptsBare() bool {
	for _, s := range r.shapes {
		if s.key == "" {
			return true
		}
	}
	return false
}
