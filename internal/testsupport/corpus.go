package testsupport

import (
	"context"
	"fmt"
	"sort"

	"marsad/internal/corpus"
)

// Corpus is an in-memory corpus.Repository for tests. Laws and judgments are
// keyed by ID; ReadErrors simulates unreadable documents.
type Corpus struct {
	Laws       map[string]*corpus.Law
	Judgments  map[string]*corpus.Judgment
	Indexes    []corpus.IndexStat
	ReadErrors map[string]error
}

// NewCorpus returns an empty in-memory corpus.
func NewCorpus() *Corpus {
	return &Corpus{
		Laws:       make(map[string]*corpus.Law),
		Judgments:  make(map[string]*corpus.Judgment),
		ReadErrors: make(map[string]error),
	}
}

// AddLaw inserts a law keyed by its ID.
func (c *Corpus) AddLaw(law *corpus.Law) *Corpus {
	c.Laws[law.ID] = law
	return c
}

// AddJudgment inserts a judgment keyed by its ID.
func (c *Corpus) AddJudgment(j *corpus.Judgment) *Corpus {
	c.Judgments[j.ID] = j
	return c
}

// FailRead makes reads of the given entity ID return err.
func (c *Corpus) FailRead(id string, err error) *Corpus {
	c.ReadErrors[id] = err
	return c
}

// LawIDs implements corpus.LawReader.
func (c *Corpus) LawIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(c.Laws))
	for id := range c.Laws {
		ids = append(ids, id)
	}
	for id := range c.ReadErrors {
		if _, ok := c.Laws[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Law implements corpus.LawReader.
func (c *Corpus) Law(ctx context.Context, id string) (*corpus.Law, error) {
	if err, ok := c.ReadErrors[id]; ok {
		return nil, err
	}
	law, ok := c.Laws[id]
	if !ok {
		return nil, fmt.Errorf("law %s not found", id)
	}
	return law, nil
}

// JudgmentIDs implements corpus.JudgmentReader.
func (c *Corpus) JudgmentIDs(ctx context.Context) (map[string][]string, error) {
	out := make(map[string][]string)
	ids := make([]string, 0, len(c.Judgments))
	for id := range c.Judgments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		j := c.Judgments[id]
		source := j.Source
		if source == "" {
			source = "unknown"
		}
		out[source] = append(out[source], id)
	}
	return out, nil
}

// Judgment implements corpus.JudgmentReader.
func (c *Corpus) Judgment(ctx context.Context, id string) (*corpus.Judgment, error) {
	if err, ok := c.ReadErrors[id]; ok {
		return nil, err
	}
	j, ok := c.Judgments[id]
	if !ok {
		return nil, fmt.Errorf("judgment %s not found", id)
	}
	return j, nil
}

// IndexStats implements corpus.IndexStats.
func (c *Corpus) IndexStats(ctx context.Context) ([]corpus.IndexStat, error) {
	return c.Indexes, nil
}
