// Package processing submits ingestion input to the system that performs the work and
// arranges for the completion callback to reach the API.
package processing

import (
	"sync/atomic"
	"time"

	"github.com/noah-isme/docmgmt-api/internal/models"
)

// Callback is the body POSTed to the ingestion callback endpoint.
type Callback struct {
	ID     int64             `json:"id"`
	Status models.TaskStatus `json:"status"`
}

// IDGenerator hands out increasing task ids seeded from wall-clock milliseconds,
// so ids stay unique across restarts of a single instance.
type IDGenerator struct {
	last atomic.Int64
}

// NewIDGenerator seeds the generator.
func NewIDGenerator(now time.Time) *IDGenerator {
	g := &IDGenerator{}
	g.last.Store(now.UnixMilli())
	return g
}

// Next returns a fresh id.
func (g *IDGenerator) Next() int64 {
	return g.last.Add(1)
}
