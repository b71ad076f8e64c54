package orchestrator

import (
	"net"
	"os"
)

func listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeMarker(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
