package transport

// PeerCred identifies the process on the other end of a unix socket.
type PeerCred struct {
	PID int32
	UID uint32
	GID uint32
}
