package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleStudent can reach the student area
	RoleStudent UserRole = "Student"
	// RoleTeacher can reach the teacher area
	RoleTeacher UserRole = "Teacher"
	// RoleAdmin can reach the admin area
	RoleAdmin UserRole = "Admin"
)

// User is the identity record held by an authenticated session. It is
// persisted as JSON under the user key.
type User struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Role  UserRole `json:"role"`
}

// Clone returns a copy so snapshots never share a mutable record.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Equal compares two records field by field.
func (u *User) Equal(o *User) bool {
	if u == nil || o == nil {
		return u == o
	}
	return *u == *o
}

type userRecord User

// UnmarshalJSON accepts the id as a JSON string or number. Numeric ids are
// kept in their literal form, so 1 becomes "1".
func (u *User) UnmarshalJSON(data []byte) error {
	var aux struct {
		userRecord
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := decodeUserID(aux.ID)
	if err != nil {
		return err
	}

	*u = User(aux.userRecord)
	u.ID = id
	return nil
}

func decodeUserID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("user id must be a string or number: %s", raw)
	}
	return n.String(), nil
}

func encodeUser(u *User) (string, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// decodeUser parses a persisted record. A record without an id, or with an
// empty one, is treated as unparseable.
func decodeUser(raw string) (*User, error) {
	u := &User{}
	if err := json.Unmarshal([]byte(raw), u); err != nil {
		return nil, err
	}
	if strings.TrimSpace(u.ID) == "" {
		return nil, ErrCorruptedSession
	}
	return u, nil
}
