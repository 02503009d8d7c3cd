//go:build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

func peerCred(c *net.UnixConn) (PeerCred, bool) {
	raw, err := c.SyscallConn()
	if err != nil {
		return PeerCred{}, false
	}

	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil || credErr != nil {
		return PeerCred{}, false
	}
	return PeerCred{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}, true
}
