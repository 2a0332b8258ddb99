package monitoring

import (
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
)

// A Binder creates listeners. The server uses it for every bind attempt.
type Binder interface {
	Listen(network, address string) (net.Listener, error)
}

type netBinder struct{}

func (netBinder) Listen(network, address string) (net.Listener, error) {
	return net.Listen(network, address)
}

// Default range of the ports tried when no port is configured. The upper
// bound is exclusive.
const (
	DefaultPortLow      = 49152
	DefaultPortHigh     = 65535
	DefaultBindAttempts = 50
)

func (s *Server) bind() (net.Listener, error) {
	if s.port != 0 {
		listener, err := s.binder.Listen("tcp", s.hostPort(s.port))
		if err != nil {
			return nil, fmt.Errorf("%w: port %d: %w", ErrBindFailure, s.port, err)
		}

		return listener, nil
	}

	var lastErr error
	for i := 0; i < s.bindAttempts; i++ {
		address := s.hostPort(s.portLow + rand.IntN(s.portHigh-s.portLow))

		listener, err := s.binder.Listen("tcp", address)
		if err == nil {
			return listener, nil
		}

		s.logger.WithError(err).
			WithField("address", address).
			Debug("bind failed")

		lastErr = err
	}

	return nil, fmt.Errorf("%w after %d attempts: %w",
		ErrBindFailure, s.bindAttempts, lastErr)
}

func (s *Server) hostPort(port int) string {
	return net.JoinHostPort(s.address, strconv.Itoa(port))
}
