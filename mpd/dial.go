package mpd

import (
	"context"
	"net"
	"os"
)

// dial opens the low-level transport for a host string. A host naming an
// existing unix socket on the filesystem is dialled as such; anything
// else is treated as a TCP address.
func dial(ctx context.Context, host string) (net.Conn, error) {
	var d net.Dialer
	if isUnixSocket(host) {
		return d.DialContext(ctx, "unix", host)
	}
	return d.DialContext(ctx, "tcp", host)
}

func isUnixSocket(host string) bool {
	info, err := os.Stat(host)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSocket != 0
}
