package monitoring

import (
	"time"

	"github.com/pkg/browser"
	"github.com/sarchlab/progress/eventlog"
	"github.com/sarchlab/progress/monitoring/web"
	"github.com/sarchlab/progress/progress"
	"github.com/sirupsen/logrus"
)

// Builder can build progress servers.
type Builder struct {
	address         string
	port            int
	portLow         int
	portHigh        int
	bindAttempts    int
	binder          Binder
	openBrowser     func(url string) error
	resources       map[string]Resource
	retention       int
	waitInterval    time.Duration
	maxViewers      int
	registry        *progress.Registry
	logger          logrus.FieldLogger
	shutdownTimeout time.Duration
	profileDuration time.Duration
}

// MakeBuilder returns a Builder with the default configuration: listen on
// localhost, on a random port from the dynamic range, open a browser once
// ready, and serve the default page at "/".
func MakeBuilder() Builder {
	return Builder{
		address:      "localhost",
		portLow:      DefaultPortLow,
		portHigh:     DefaultPortHigh,
		bindAttempts: DefaultBindAttempts,
		binder:       netBinder{},
		openBrowser:  browser.OpenURL,
		resources: map[string]Resource{
			"/": Func(web.Index).WithContentType("text/html; charset=utf-8"),
		},
		waitInterval:    5 * time.Second,
		shutdownTimeout: 5 * time.Second,
		profileDuration: time.Second,
	}
}

// WithAddress sets the address to listen on.
func (b Builder) WithAddress(address string) Builder {
	b.address = address
	return b
}

// WithPort sets the port to listen on. Port 0 picks a random port.
func (b Builder) WithPort(port int) Builder {
	b.port = port
	return b
}

// WithPortRange sets the range [low, high) random ports are picked from.
func (b Builder) WithPortRange(low, high int) Builder {
	b.portLow = low
	b.portHigh = high

	return b
}

// WithBindAttempts sets how many random ports are tried before giving up.
func (b Builder) WithBindAttempts(n int) Builder {
	b.bindAttempts = n
	return b
}

// WithBinder sets the Binder that creates the listener.
func (b Builder) WithBinder(binder Binder) Builder {
	b.binder = binder
	return b
}

// WithBrowser makes the server open the default browser once ready.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = browser.OpenURL
	return b
}

// WithBrowserOpener makes the server call open with its URL once ready.
func (b Builder) WithBrowserOpener(open func(url string) error) Builder {
	b.openBrowser = open
	return b
}

// WithoutBrowser stops the server from opening a browser.
func (b Builder) WithoutBrowser() Builder {
	b.openBrowser = nil
	return b
}

// WithResource serves r at path, replacing any resource already mapped
// there.
func (b Builder) WithResource(path string, r Resource) Builder {
	resources := make(map[string]Resource, len(b.resources)+1)
	for p, res := range b.resources {
		resources[p] = res
	}

	resources[path] = r
	b.resources = resources

	return b
}

// WithResources merges the given mapping over the configured resources.
func (b Builder) WithResources(resources map[string]Resource) Builder {
	for path, r := range resources {
		b = b.WithResource(path, r)
	}

	return b
}

// WithRetention limits the number of events kept for replay. 0 keeps all of
// them.
func (b Builder) WithRetention(n int) Builder {
	b.retention = n
	return b
}

// WithWaitInterval sets the longest time a viewer waits for new events
// before checking whether the server is still running.
func (b Builder) WithWaitInterval(d time.Duration) Builder {
	b.waitInterval = d
	return b
}

// WithMaxViewers limits the number of concurrent connections. 0 means no
// limit.
func (b Builder) WithMaxViewers(n int) Builder {
	b.maxViewers = n
	return b
}

// WithRegistry publishes the contexts opened and closed in the registry and
// serves the registry under /api/contexts.
func (b Builder) WithRegistry(r *progress.Registry) Builder {
	b.registry = r
	return b
}

// WithLogger sets the logger of the server.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithShutdownTimeout sets how long Stop waits for viewers to receive the
// abort record before their connections are closed.
func (b Builder) WithShutdownTimeout(d time.Duration) Builder {
	b.shutdownTimeout = d
	return b
}

// WithProfileDuration sets how long /api/profile samples the CPU.
func (b Builder) WithProfileDuration(d time.Duration) Builder {
	b.profileDuration = d
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.port < 0 || b.port > 65535 {
		panic("port must be in [0, 65535]")
	}

	if b.port == 0 {
		if b.portLow <= 0 || b.portHigh > 65536 || b.portLow >= b.portHigh {
			panic("invalid port range")
		}

		if b.bindAttempts <= 0 {
			panic("bind attempts must be positive")
		}
	}

	if b.binder == nil {
		panic("binder is not set")
	}

	if b.retention < 0 {
		panic("retention must not be negative")
	}

	if b.waitInterval <= 0 {
		panic("wait interval must be positive")
	}

	if b.maxViewers < 0 {
		panic("max viewers must not be negative")
	}

	for path := range b.resources {
		if len(path) == 0 || path[0] != '/' {
			panic("resource path " + path + " must start with /")
		}
	}
}

// Build creates a server. The server accepts events right away, but only
// delivers them once started.
func (b Builder) Build() *Server {
	b.parametersMustBeValid()

	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		address:         b.address,
		port:            b.port,
		portLow:         b.portLow,
		portHigh:        b.portHigh,
		bindAttempts:    b.bindAttempts,
		binder:          b.binder,
		openBrowser:     b.openBrowser,
		resources:       b.resources,
		waitInterval:    b.waitInterval,
		maxViewers:      b.maxViewers,
		registry:        b.registry,
		logger:          logger,
		shutdownTimeout: b.shutdownTimeout,
		profileDuration: b.profileDuration,
		log:             eventlog.NewLog(b.retention),
		inbox:           eventlog.NewInbox(),
		ready:           make(chan struct{}),
	}

	if b.registry != nil {
		b.registry.AcceptHook(NewContextPublisher(s))
	}

	return s
}
