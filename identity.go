package authcore

// Identity is the request-scoped result of authentication. It is either
// Authenticated or Anonymous; the zero value is Anonymous. Anonymous never
// borrows a value from the user ID space.
type Identity struct {
	authenticated bool
	id            string
	username      string
}

// Authenticated returns the identity of a verified user.
func Authenticated(id, username string) Identity {
	return Identity{authenticated: true, id: id, username: username}
}

// Anonymous returns the identity of a caller without a valid credential.
func Anonymous() Identity {
	return Identity{}
}

// IsAuthenticated reports which variant i holds.
func (i Identity) IsAuthenticated() bool {
	return i.authenticated
}

// User returns the user ID and username. ok is false for Anonymous, in which
// case both strings are empty.
func (i Identity) User() (id, username string, ok bool) {
	if !i.authenticated {
		return "", "", false
	}
	return i.id, i.username, true
}

// ID returns the user ID, or "" for Anonymous.
func (i Identity) ID() string { return i.id }

// Username returns the username, or "" for Anonymous.
func (i Identity) Username() string { return i.username }

func (i Identity) String() string {
	if !i.authenticated {
		return "anonymous"
	}
	return "user:" + i.id
}
