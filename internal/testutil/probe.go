// Package testutil is helpers for the tests of selfmon.
package testutil

import (
	"context"
	"sync"

	"github.com/selfmon/selfmon/internal/monerr"
	"github.com/selfmon/selfmon/internal/probe"
)

// DummyResponse is a response of DummyProber.
// Error is used as the message of a probe error if not empty.
type DummyResponse struct {
	Code    int
	Elapsed float64
	Error   string
}

// DummyProber returns the queued responses in order, and repeats the last one.
type DummyProber struct {
	sync.Mutex
	Responses []DummyResponse
	Count     int
}

func NewDummyProber(rs ...DummyResponse) *DummyProber {
	return &DummyProber{Responses: rs}
}

// Push appends responses to the queue.
func (p *DummyProber) Push(rs ...DummyResponse) {
	p.Lock()
	defer p.Unlock()
	p.Responses = append(p.Responses, rs...)
}

// Set replaces the queue with a response.
func (p *DummyProber) Set(r DummyResponse) {
	p.Lock()
	defer p.Unlock()
	p.Responses = []DummyResponse{r}
}

func (p *DummyProber) Probe(ctx context.Context) (probe.Outcome, error) {
	p.Lock()
	defer p.Unlock()

	p.Count++

	r := p.Responses[0]
	if len(p.Responses) > 1 {
		p.Responses = p.Responses[1:]
	}

	if r.Error != "" {
		return probe.Outcome{Elapsed: r.Elapsed}, monerr.New(monerr.ErrProbe, nil, "%s", r.Error)
	}
	return probe.Outcome{StatusCode: r.Code, Elapsed: r.Elapsed}, nil
}
