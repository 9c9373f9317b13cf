// Package auth holds the protocol-neutral identity type an
// authenticated RPC caller resolves to, plus the error taxonomy
// credential handling reports. The dispatcher-side authenticator that
// produces these lives with the NFS dispatcher; this package only
// defines what an authenticated caller *is*, so the session table,
// logging, and any future protocol front end share one shape.
package auth

import "errors"

// Standard authentication errors.
var (
	// ErrAuthFailed indicates that authentication was attempted but
	// failed (bad or rejected credentials).
	ErrAuthFailed = errors.New("auth: authentication failed")

	// ErrUnsupportedMechanism indicates a credential flavor this server
	// does not accept.
	ErrUnsupportedMechanism = errors.New("auth: unsupported authentication mechanism")

	// ErrInvalidCredentials indicates that the credentials are malformed
	// or cannot be parsed (distinct from wrong credentials).
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
