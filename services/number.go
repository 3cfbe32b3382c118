package services

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Number accepts either a JSON number or a numeric string, since form posts
// send numeric inputs as strings.
type Number struct {
	raw string
	set bool
}

func NumberOf(s string) Number { return Number{raw: s, set: true} }

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number{raw: strings.TrimSpace(s), set: true}
		return nil
	}
	*n = Number{raw: string(b), set: true}
	return nil
}

// Present reports whether a non-empty value was supplied.
func (n Number) Present() bool { return n.set && n.raw != "" }

func (n Number) String() string { return n.raw }
