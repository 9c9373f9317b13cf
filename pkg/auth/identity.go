package auth

import "fmt"

// Identity represents an authenticated caller in a protocol-neutral
// form: Unix credentials from AUTH_UNIX, or an anonymous caller for
// AUTH_NONE.
type Identity struct {
	// Username is the resolved username, if any. May be empty for
	// unmapped Unix UIDs or anonymous access.
	Username string

	// UID is the numeric Unix user ID from the AUTH_UNIX credential.
	UID uint32

	// GID is the primary Unix group ID.
	GID uint32

	// Groups contains supplementary Unix group IDs.
	Groups []uint32

	// Anonymous indicates an unauthenticated identity (AUTH_NONE).
	// When true, Username may be empty and UID/GID are default values.
	Anonymous bool
}

// String renders the identity for logging.
func (i Identity) String() string {
	if i.Anonymous {
		return "anonymous"
	}
	if i.Username != "" {
		return fmt.Sprintf("%s(uid=%d,gid=%d)", i.Username, i.UID, i.GID)
	}
	return fmt.Sprintf("uid=%d,gid=%d", i.UID, i.GID)
}
