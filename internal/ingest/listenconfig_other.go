//go:build !unix

package ingest

import "net"

// reuseAddrListenConfig returns the zero-value net.ListenConfig on
// platforms without a Control callback for SO_REUSEADDR.
func reuseAddrListenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
