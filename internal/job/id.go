package job

import "go.jetify.com/typeid"

// Prefix is used to define the job typeid prefix.
type Prefix struct{}

// Prefix returns the job id type prefix, "job".
func (Prefix) Prefix() string { return "job" }

// ID is the job id type: a short, URL-safe, sortable, prefixed identifier.
type ID struct {
	typeid.TypeID[Prefix]
}

// NewID returns a new, randomly generated ID.
func NewID() (ID, error) {
	return typeid.New[ID]()
}

// ParseID parses the canonical string form of an ID ("job_...").
func ParseID(s string) (ID, error) {
	return typeid.Parse[ID](s)
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*id = ID{}
		return nil
	}
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
