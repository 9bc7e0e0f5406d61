package search

import (
	"github.com/poiesic/ragnote/core"
)

// SearchMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results.
type SearchMonitor interface {
	Start(question string)
	AfterEmbedding(vector []float32, err error)
	AfterVectorSearch(matches []core.VectorMatch)
	AfterFilter(kept []core.VectorMatch)
	AfterResolve(chunks []*core.Chunk)
	FallbackTriggered(terms []string)
	Finish(result *Retrieval)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                         {}
func (n *noopMonitor) AfterEmbedding(_ []float32, _ error)    {}
func (n *noopMonitor) AfterVectorSearch(_ []core.VectorMatch) {}
func (n *noopMonitor) AfterFilter(_ []core.VectorMatch)       {}
func (n *noopMonitor) AfterResolve(_ []*core.Chunk)           {}
func (n *noopMonitor) FallbackTriggered(_ []string)           {}
func (n *noopMonitor) Finish(_ *Retrieval)                    {}
