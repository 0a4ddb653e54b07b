package domain

// User is the profile the backend returns alongside a token.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Session is the authenticated identity held by the client: the bearer
// token plus the user profile it was issued for. Token and User are
// persisted and cleared together, never one without the other.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`

	// Validated reports whether the session has been confirmed against
	// the backend since it was loaded. A session restored from disk is
	// trusted optimistically and stays unvalidated until the first
	// authenticated call (or an explicit revalidation) succeeds.
	Validated bool `json:"-"`
}
