// Package knowledge provides similarity search over the crisis-support
// content corpus. The risk pipeline's contextual analyzer queries it for
// crisis-adjacent passages; the core never writes to it at request time.
package knowledge

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// Match is one similarity hit from the corpus.
type Match struct {
	Content    string
	Similarity float64
}

// Store wraps an in-memory chromem-go collection of support passages.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *logging.Logger

	mu    sync.RWMutex
	count int
}

// NewStore creates an empty store. The embedding function is injected so
// deployments can choose a remote embedder while tests use a local one.
func NewStore(embed chromem.EmbeddingFunc, logger *logging.Logger) (*Store, error) {
	if embed == nil {
		embed = LocalEmbeddingFunc()
	}
	if logger == nil {
		logger = logging.Default()
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection("support_passages", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("knowledge: create collection: %w", err)
	}

	return &Store{
		db:         db,
		collection: collection,
		logger:     logger,
	}, nil
}

// AddPassages embeds and stores corpus passages.
func (s *Store) AddPassages(ctx context.Context, passages []string) error {
	if len(passages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]chromem.Document, len(passages))
	for i, p := range passages {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("passage_%d", s.count+i),
			Content: p,
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("knowledge: add documents: %w", err)
	}
	s.count += len(passages)

	s.logger.Info("knowledge passages added", "count", len(passages), "total", s.count)
	return nil
}

// Search returns the topK most similar passages for a query.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 3
	}

	s.mu.RLock()
	count := s.count
	s.mu.RUnlock()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := s.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("knowledge: query: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			Content:    r.Content,
			Similarity: float64(r.Similarity),
		})
	}
	return matches, nil
}

// DefaultCorpus is the seed set of crisis-support passages loaded at boot.
// Real deployments ingest the curated content library instead.
var DefaultCorpus = []string{
	"If you are having thoughts of suicide or self-harm, contact the 988 Suicide and Crisis Lifeline by calling or texting 988.",
	"Warning signs of a suicidal crisis include talking about wanting to die, feeling hopeless, and giving away possessions.",
	"Grounding techniques such as slow breathing and naming five things you can see help during a panic attack.",
	"Severe depression can involve persistent hopelessness, loss of interest, and thoughts that life is not worth living.",
	"If someone is hurting you at home, you can reach the domestic violence hotline for confidential support and safety planning.",
	"Substance use to cope with emotional pain increases crisis risk and benefits from professional support.",
	"Restricting food, purging, or fasting for days are signs of an eating disorder that needs clinical care.",
}
