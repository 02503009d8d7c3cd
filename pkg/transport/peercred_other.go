//go:build !linux

package transport

import "net"

func peerCred(*net.UnixConn) (PeerCred, bool) {
	return PeerCred{}, false
}
