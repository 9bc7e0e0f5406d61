package chat

import (
	"context"

	"github.com/poiesic/ragnote/ai"
	"github.com/poiesic/ragnote/extract"
	"github.com/poiesic/ragnote/search"
)

// Retriever finds chunks relevant to a question. *search.Retriever
// implements it.
type Retriever interface {
	Retrieve(ctx context.Context, question string, monitor search.SearchMonitor) (*search.Retrieval, error)
}

// Generator produces the answer. *ai.Router implements it.
type Generator interface {
	Generate(ctx context.Context, messages []ai.Message) (*ai.Generation, error)
}

// Ingester starts ingestion of a text. *ingestion.Engine implements it.
type Ingester interface {
	Start(ctx context.Context, text, sourceURL string) (string, error)
}

// LinkExtractor downloads the text behind a link. *extract.Extractor
// implements it.
type LinkExtractor interface {
	Extract(ctx context.Context, url string) (*extract.Content, error)
}
