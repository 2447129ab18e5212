package session

// Session is the authenticated user's email and bearer token.
// The zero value means "no session".
type Session struct {
	Email string
	Token string
}

// IsZero reports whether no session is present.
func (s Session) IsZero() bool {
	return s.Email == "" && s.Token == ""
}

// Complete reports whether both fields are populated.
func (s Session) Complete() bool {
	return s.Email != "" && s.Token != ""
}

// Record is what a Backend persists. Unlike Session it may be partial when
// storage was written by something other than Store.
type Record struct {
	Token string `json:"token,omitempty"`
	Email string `json:"email,omitempty"`
}

func (r Record) complete() bool {
	return r.Token != "" && r.Email != ""
}
