package netutil

import (
	"fmt"
	"net"
)

// SelectBindAddr returns the first address the gateway can listen on, trying
// preferred before the candidate list. Without autoFallback a busy preferred
// address is an error rather than a reason to move on.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		ok, err := IsAddrAvailable(preferred)
		if err != nil {
			return "", err
		}
		if ok {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred bind address in use: %s", preferred)
		}
	}

	for _, addr := range candidates {
		ok, err := IsAddrAvailable(addr)
		if err != nil {
			return "", err
		}
		if ok {
			return addr, nil
		}
	}

	return "", fmt.Errorf("no usable bind address (tried %d candidates)", len(candidates))
}

// IsAddrAvailable reports whether addr can be listened on right now.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
