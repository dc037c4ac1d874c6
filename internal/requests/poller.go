package requests

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/surfvision/camtuner/internal/logger"
	"github.com/surfvision/camtuner/internal/service"
	"github.com/surfvision/camtuner/internal/telemetry"
)

// Request processing states reported back to the backend
const (
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// CommandFunc executes one backend command and returns its response payload
type CommandFunc func(ctx context.Context, req telemetry.BackendRequest) (interface{}, error)

// Poller pulls pending commands from the backend queue, executes them and
// posts results back. Commands are registered by name; unknown commands
// fail without side effects.
type Poller struct {
	*service.ServiceBase
	client   *telemetry.Client
	interval time.Duration
	cancel   context.CancelFunc

	mu       sync.RWMutex
	commands map[string]CommandFunc
	seen     map[string]time.Time
}

// NewPoller creates the request poller
func NewPoller(client *telemetry.Client, interval time.Duration, log *logger.Logger) *Poller {
	if interval == 0 {
		interval = time.Minute
	}
	return &Poller{
		ServiceBase: service.NewServiceBase("request-poller", log),
		client:      client,
		interval:    interval,
		commands:    make(map[string]CommandFunc),
		seen:        make(map[string]time.Time),
	}
}

// RegisterCommand binds a handler to a command name
func (p *Poller) RegisterCommand(name string, fn CommandFunc) {
	p.mu.Lock()
	p.commands[name] = fn
	p.mu.Unlock()
}

// Start starts the polling loop
func (p *Poller) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go p.pollLoop(loopCtx)

	p.GetStatus().SetStatus(service.StatusRunning)
	p.LogInfo("Request poller started", "interval", p.interval.String())
	return nil
}

// Stop stops the polling loop
func (p *Poller) Stop(ctx context.Context) error {
	p.GetStatus().SetStatus(service.StatusStopping)
	if p.cancel != nil {
		p.cancel()
	}
	p.GetStatus().SetStatus(service.StatusStopped)
	p.LogInfo("Request poller stopped")
	return nil
}

func (p *Poller) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll fetches and executes one batch of pending requests
func (p *Poller) Poll(ctx context.Context) {
	reqs, err := p.client.FetchRequests(ctx)
	if err != nil {
		p.LogWarn("Failed to fetch backend requests", "error", err)
		return
	}

	for _, req := range reqs {
		if p.alreadySeen(req.ID) {
			continue
		}
		p.execute(ctx, req)
	}
	p.pruneSeen()
}

func (p *Poller) execute(ctx context.Context, req telemetry.BackendRequest) {
	p.LogInfo("Executing backend request", "id", req.ID, "command", req.Command)

	if err := p.client.PostRequestStatus(ctx, req.ID, StatusProcessing); err != nil {
		p.LogWarn("Failed to acknowledge request", "id", req.ID, "error", err)
	}

	p.mu.RLock()
	fn, ok := p.commands[req.Command]
	p.mu.RUnlock()

	var payload interface{}
	var err error
	if !ok {
		err = fmt.Errorf("unknown command %q", req.Command)
	} else {
		payload, err = fn(ctx, req)
	}

	if err != nil {
		p.LogError("Backend request failed", err, "id", req.ID, "command", req.Command)
		p.client.PostRequestResponse(ctx, req.ID, map[string]string{"error": err.Error()})
		p.client.PostRequestStatus(ctx, req.ID, StatusFailed)
		return
	}

	if err := p.client.PostRequestResponse(ctx, req.ID, payload); err != nil {
		p.LogWarn("Failed to post request response", "id", req.ID, "error", err)
	}
	if err := p.client.PostRequestStatus(ctx, req.ID, StatusDone); err != nil {
		p.LogWarn("Failed to post request status", "id", req.ID, "error", err)
	}
}

// alreadySeen marks and checks a request ID so re-listed requests are not
// re-executed while the backend catches up on status updates
func (p *Poller) alreadySeen(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.seen[id]; ok {
		return true
	}
	p.seen[id] = time.Now()
	return false
}

func (p *Poller) pruneSeen() {
	cutoff := time.Now().Add(-time.Hour)
	p.mu.Lock()
	for id, at := range p.seen {
		if at.Before(cutoff) {
			delete(p.seen, id)
		}
	}
	p.mu.Unlock()
}
