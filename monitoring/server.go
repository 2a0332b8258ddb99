// Package monitoring serves progress events to viewers over HTTP.
//
// A Server keeps every published event in an event log. Each viewer that
// connects to /events first receives the whole log, then every new event as
// it is published, as a server-sent event stream. When the server stops,
// attached viewers receive a final abort record.
//
//	s := monitoring.MakeBuilder().WithoutBrowser().Build()
//	s.Start()
//	defer s.Stop()
//
//	if _, err := s.WaitUntilReady(time.Second); err != nil {
//		log.Fatal(err)
//	}
//
//	s.PublishString(`{"step": 1}`)
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sarchlab/progress/eventlog"
	"github.com/sarchlab/progress/progress"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of a Server.
type State int

// The states of a Server, in the order they are entered.
const (
	StateIdle State = iota
	StateStarting
	StateReady
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateReady:
		return "Ready"
	case StateShuttingDown:
		return "ShuttingDown"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// A Server broadcasts published events to all connected viewers.
type Server struct {
	address         string
	port            int
	portLow         int
	portHigh        int
	bindAttempts    int
	binder          Binder
	openBrowser     func(url string) error
	resources       map[string]Resource
	waitInterval    time.Duration
	maxViewers      int
	registry        *progress.Registry
	logger          logrus.FieldLogger
	shutdownTimeout time.Duration
	profileDuration time.Duration

	log   *eventlog.Log
	inbox *eventlog.Inbox

	lock       sync.Mutex
	state      State
	setupErr   error
	listener   net.Listener
	httpServer *http.Server
	cancel     context.CancelFunc
	group      *errgroup.Group
	ready      chan struct{}
	running    atomic.Bool

	stopOnce sync.Once
	stopErr  error
}

// Start binds the server and starts serving in the background. Bind errors
// are reported by WaitUntilReady.
func (s *Server) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyStarted
	}

	s.state = StateStarting

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.group, ctx = errgroup.WithContext(ctx)

	s.group.Go(func() error {
		return s.run(ctx)
	})

	return nil
}

func (s *Server) run(ctx context.Context) error {
	listener, err := s.bind()
	if err != nil {
		s.lock.Lock()
		s.setupErr = err
		s.state = StateStopped
		s.lock.Unlock()

		s.logger.WithError(err).Error("progress server failed to start")
		close(s.ready)

		return err
	}

	if s.maxViewers > 0 {
		listener = netutil.LimitListener(listener, s.maxViewers)
	}

	httpServer := &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	s.lock.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.state = StateReady
	s.lock.Unlock()

	s.running.Store(true)

	s.group.Go(func() error {
		s.inbox.Drain(ctx, s.log)
		return nil
	})

	url := s.URL()
	fmt.Fprintf(os.Stderr, "Monitoring progress with %s\n", url)
	s.logger.WithField("address", listener.Addr().String()).
		Info("progress server ready")

	close(s.ready)

	if s.openBrowser != nil {
		if err := s.openBrowser(url); err != nil {
			s.logger.WithError(err).Warn("cannot open browser")
		}
	}

	err = httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// WaitUntilReady blocks until the server is ready or has failed to start, or
// until timeout expires. A timeout of 0 waits forever. It returns whether the
// server is running, and the bind error if the server failed to start.
func (s *Server) WaitUntilReady(timeout time.Duration) (bool, error) {
	if s.State() == StateIdle {
		return false, ErrNotStarted
	}

	if timeout <= 0 {
		<-s.ready
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-s.ready:
		case <-timer.C:
			return false, nil
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.setupErr != nil {
		return false, s.setupErr
	}

	return s.running.Load(), nil
}

// Stop shuts the server down. Attached viewers receive the abort record and
// are disconnected. Stop waits for all the goroutines of the server to exit.
// Calling Stop again does nothing.
func (s *Server) Stop() error {
	if s.State() == StateIdle {
		return ErrNotStarted
	}

	<-s.ready

	s.stopOnce.Do(s.shutdown)

	return s.stopErr
}

func (s *Server) shutdown() {
	s.lock.Lock()
	httpServer := s.httpServer
	if s.state == StateReady {
		s.state = StateShuttingDown
	}
	s.lock.Unlock()

	s.running.Store(false)
	s.inbox.Close()
	s.log.Close()

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.WithError(err).
				Warn("viewers still attached, closing their connections")

			_ = httpServer.Close()
		}
	}

	s.cancel()

	err := s.group.Wait()
	if err != nil && !errors.Is(err, ErrBindFailure) {
		s.stopErr = err
	}

	s.lock.Lock()
	s.state = StateStopped
	s.lock.Unlock()

	s.logger.Info("progress server stopped")
}

// State returns the lifecycle state of the server.
func (s *Server) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.state
}

// Publish hands an already serialized event over to the server. It never
// blocks. It returns false if the server is stopped.
func (s *Server) Publish(payload []byte) bool {
	return s.inbox.Put(payload)
}

// PublishString is Publish for text payloads.
func (s *Server) PublishString(payload string) bool {
	return s.Publish([]byte(payload))
}

// Invalidate releases the payloads of the events before upTo. Viewers that
// have not received them yet skip them.
func (s *Server) Invalidate(upTo int) {
	s.log.Invalidate(upTo)
}

// Addr returns the address the server listens on, or nil if it is not
// listening.
func (s *Server) Addr() net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Port returns the port the server listens on, or 0 if it is not listening.
func (s *Server) Port() int {
	addr, ok := s.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}

	return addr.Port
}

// URL returns the URL of the root page of the server.
func (s *Server) URL() string {
	return "http://" + s.hostPort(s.Port()) + "/"
}
