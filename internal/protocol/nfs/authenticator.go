package nfs

import (
	"fmt"

	"github.com/marmos91/nfsv3d/internal/protocol/nfs/rpc"
	"github.com/marmos91/nfsv3d/pkg/auth"
	"github.com/marmos91/nfsv3d/pkg/session"
)

// Authenticator resolves an RPC call's credential into the session key
// and client identity a Session is built from, and updates the session
// with the caller's current identity on every request. Deployments can
// substitute their own implementation to reject callers or map
// identities differently; the default accepts AUTH_NONE and AUTH_UNIX
// and never rejects.
type Authenticator interface {
	// Authenticate derives the session key for the call's credential.
	Authenticate(clientAddr string, call *rpc.RPCCallMessage) (key uint64, class session.AuthClass, err error)

	// BuildClientInfo resolves the credential into the identity a new
	// session is created with.
	BuildClientInfo(clientAddr string, call *rpc.RPCCallMessage) (session.ClientInfo, error)

	// SetCurrentUser records the caller's identity on an existing
	// session, picking up credential details (e.g. supplementary
	// groups) that the session key does not pin.
	SetCurrentUser(sess *session.Session, client session.ClientInfo)
}

// defaultAuthenticator keys AUTH_UNIX sessions by (address, uid, gid)
// and everything else (including AUTH_NONE) by address alone.
type defaultAuthenticator struct{}

func (defaultAuthenticator) Authenticate(clientAddr string, call *rpc.RPCCallMessage) (uint64, session.AuthClass, error) {
	if call.GetAuthFlavor() == rpc.AuthUnix {
		cred, err := rpc.ParseUnixAuth(call.GetAuthBody())
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", auth.ErrInvalidCredentials, err)
		}
		return session.KeyForAuthUnix(clientAddr, cred.UID, cred.GID), session.AuthUnix, nil
	}
	return session.KeyForAuthNone(clientAddr), session.AuthNone, nil
}

func (defaultAuthenticator) BuildClientInfo(clientAddr string, call *rpc.RPCCallMessage) (session.ClientInfo, error) {
	if call.GetAuthFlavor() == rpc.AuthUnix {
		cred, err := rpc.ParseUnixAuth(call.GetAuthBody())
		if err != nil {
			return session.ClientInfo{}, fmt.Errorf("%w: %v", auth.ErrInvalidCredentials, err)
		}
		return session.ClientInfo{
			Identity: auth.Identity{UID: cred.UID, GID: cred.GID, Groups: cred.GIDs},
			Address:  clientAddr,
		}, nil
	}
	return session.ClientInfo{Identity: auth.Identity{Anonymous: true}, Address: clientAddr}, nil
}

func (defaultAuthenticator) SetCurrentUser(sess *session.Session, client session.ClientInfo) {
	sess.SetClient(client)
}
