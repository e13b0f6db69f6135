package domain

// User roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Identity is the resolved caller identity: either a registered user or a
// guest carrying an opaque token. Exactly one of UserID and GuestToken is set.
// Resolution happens once at the HTTP boundary; downstream code only inspects
// the tag, never the raw credential shape.
type Identity struct {
	UserID     string
	Role       string
	GuestToken string
}

// UserIdentity returns an identity for a registered user.
func UserIdentity(userID, role string) Identity {
	return Identity{UserID: userID, Role: role}
}

// GuestIdentity returns an identity for a guest carrying the given token.
func GuestIdentity(token string) Identity {
	return Identity{GuestToken: token}
}

// IsUser reports whether the identity belongs to a registered user.
func (i Identity) IsUser() bool {
	return i.UserID != ""
}

// IsGuest reports whether the identity is a guest token.
func (i Identity) IsGuest() bool {
	return i.UserID == "" && i.GuestToken != ""
}

// IsAdmin reports whether the identity is a user with the admin role.
func (i Identity) IsAdmin() bool {
	return i.UserID != "" && i.Role == RoleAdmin
}

// IsZero reports whether no identity was resolved at all.
func (i Identity) IsZero() bool {
	return i.UserID == "" && i.GuestToken == ""
}
