package nfs

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/marmos91/nfsv3d/internal/protocol/nfs/rpc"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs/types"
	"github.com/marmos91/nfsv3d/internal/protocol/xdr"
	"github.com/marmos91/nfsv3d/pkg/auth"
	"github.com/marmos91/nfsv3d/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeUnixAuthBody builds a raw AUTH_UNIX credential body.
func encodeUnixAuthBody(t *testing.T, machine string, uid, gid uint32, gids []uint32) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, xdr.WriteUint32(buf, 0)) // stamp
	require.NoError(t, xdr.WriteXDRString(buf, machine))
	require.NoError(t, xdr.WriteUint32(buf, uid))
	require.NoError(t, xdr.WriteUint32(buf, gid))
	require.NoError(t, xdr.WriteUint32(buf, uint32(len(gids))))
	for _, g := range gids {
		require.NoError(t, xdr.WriteUint32(buf, g))
	}
	return buf.Bytes()
}

func TestDefaultAuthenticator(t *testing.T) {
	var a defaultAuthenticator
	const addr = "192.168.1.5:700"

	t.Run("auth none keys by address", func(t *testing.T) {
		call := &rpc.RPCCallMessage{Cred: rpc.OpaqueAuth{Flavor: rpc.AuthNull}}
		key, class, err := a.Authenticate(addr, call)
		require.NoError(t, err)
		assert.Equal(t, session.AuthNone, class)
		assert.Equal(t, session.KeyForAuthNone(addr), key)

		client, err := a.BuildClientInfo(addr, call)
		require.NoError(t, err)
		assert.True(t, client.Anonymous)
		assert.Equal(t, addr, client.Address)
	})

	t.Run("auth unix keys by address uid gid", func(t *testing.T) {
		body := encodeUnixAuthBody(t, "client1", 1000, 100, []uint32{4, 24})
		call := &rpc.RPCCallMessage{Cred: rpc.OpaqueAuth{Flavor: rpc.AuthUnix, Body: body}}
		key, class, err := a.Authenticate(addr, call)
		require.NoError(t, err)
		assert.Equal(t, session.AuthUnix, class)
		assert.Equal(t, session.KeyForAuthUnix(addr, 1000, 100), key)

		client, err := a.BuildClientInfo(addr, call)
		require.NoError(t, err)
		assert.False(t, client.Anonymous)
		assert.EqualValues(t, 1000, client.UID)
		assert.EqualValues(t, 100, client.GID)
		assert.Equal(t, []uint32{4, 24}, client.Groups)
	})

	t.Run("malformed auth unix rejected", func(t *testing.T) {
		call := &rpc.RPCCallMessage{Cred: rpc.OpaqueAuth{Flavor: rpc.AuthUnix, Body: []byte{0x01}}}
		_, _, err := a.Authenticate(addr, call)
		assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))
	})
}

// TestDispatch_NullBypassesAuth: NULL must succeed even with a
// credential the authenticator rejects.
func TestDispatch_NullBypassesAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	buf := new(bytes.Buffer)
	_ = xdr.WriteUint32(buf, 0xBB)
	_ = xdr.WriteUint32(buf, 0) // msg_type = CALL
	_ = xdr.WriteUint32(buf, 2) // rpcvers
	_ = xdr.WriteUint32(buf, types.ProgramNFS)
	_ = xdr.WriteUint32(buf, types.NFSVersion3)
	_ = xdr.WriteUint32(buf, types.NFSProcNull)
	_ = xdr.WriteUint32(buf, rpc.AuthUnix)
	_ = xdr.WriteXDROpaque(buf, []byte{0x01}) // truncated AUTH_UNIX body
	_ = xdr.WriteUint32(buf, 0)               // verf flavor
	_ = xdr.WriteXDROpaque(buf, nil)

	reply := srv.Dispatch(context.Background(), "127.0.0.1:999", buf.Bytes())
	body := parseReply(t, reply, 0xBB)
	assert.Empty(t, body, "NULL must succeed without authentication")
}
