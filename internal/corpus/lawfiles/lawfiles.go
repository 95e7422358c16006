// Package lawfiles implements corpus.Repository over the platform's on-disk
// content layout: one JSON document per law under laws_dir and one JSON
// record per judgment under judgments_dir, plus an optional search-index
// manifest exported by the platform's indexer.
package lawfiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"marsad/internal/arabiclex"
	"marsad/internal/corpus"
)

// Repository reads laws and judgments from JSON directories.
type Repository struct {
	lawsDir      string
	judgmentsDir string
}

// New constructs a file-backed corpus repository.
func New(lawsDir, judgmentsDir string) *Repository {
	return &Repository{lawsDir: lawsDir, judgmentsDir: judgmentsDir}
}

// LawIDs lists law identifiers in lexical order (one per JSON file).
func (r *Repository) LawIDs(ctx context.Context) ([]string, error) {
	return listJSONIDs(ctx, r.lawsDir)
}

// rawArticle tolerates the platform's loose article-number encoding: numbers
// appear as integers, Western-digit strings, Arabic-Indic-digit strings, or
// ordinal words.
type rawArticle struct {
	Number     json.RawMessage    `json:"number"`
	Text       string             `json:"text"`
	Paragraphs []corpus.Paragraph `json:"paragraphs"`
}

type rawLaw struct {
	ID               string       `json:"law_id"`
	Name             string       `json:"law_name"`
	Title            string       `json:"title"`
	IssuingAuthority string       `json:"issuing_authority"`
	IssueDateHijri   string       `json:"issue_date_hijri"`
	PublishDateHijri string       `json:"publish_date_hijri"`
	TotalArticles    int          `json:"total_articles"`
	Articles         []rawArticle `json:"articles"`
}

// Law loads one law document. Corrupt JSON returns a *corpus.ParseError.
func (r *Repository) Law(ctx context.Context, id string) (*corpus.Law, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(r.lawsDir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read law %s: %w", id, err)
	}
	var raw rawLaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &corpus.ParseError{EntityID: id, Path: path, Err: err}
	}
	law := &corpus.Law{
		ID:               firstNonEmpty(raw.ID, id),
		Name:             raw.Name,
		Title:            raw.Title,
		IssuingAuthority: raw.IssuingAuthority,
		IssueDateHijri:   raw.IssueDateHijri,
		PublishDateHijri: raw.PublishDateHijri,
		TotalArticles:    raw.TotalArticles,
		Articles:         make([]corpus.Article, 0, len(raw.Articles)),
	}
	for _, ra := range raw.Articles {
		law.Articles = append(law.Articles, corpus.Article{
			Number:     parseArticleNumber(ra.Number),
			Text:       ra.Text,
			Paragraphs: ra.Paragraphs,
		})
	}
	return law, nil
}

// JudgmentIDs groups judgment identifiers by their source tag. The source is
// read from each record; unreadable records land in the "unknown" bucket so
// the content stage can still sample and flag them.
func (r *Repository) JudgmentIDs(ctx context.Context) (map[string][]string, error) {
	ids, err := listJSONIDs(ctx, r.judgmentsDir)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]string)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source := "unknown"
		if j, err := r.Judgment(ctx, id); err == nil && strings.TrimSpace(j.Source) != "" {
			source = j.Source
		}
		grouped[source] = append(grouped[source], id)
	}
	return grouped, nil
}

// Judgment loads one judgment record. Corrupt JSON returns a *corpus.ParseError.
func (r *Repository) Judgment(ctx context.Context, id string) (*corpus.Judgment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(r.judgmentsDir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read judgment %s: %w", id, err)
	}
	var judgment corpus.Judgment
	if err := json.Unmarshal(data, &judgment); err != nil {
		return nil, &corpus.ParseError{EntityID: id, Path: path, Err: err}
	}
	if judgment.ID == "" {
		judgment.ID = id
	}
	return &judgment, nil
}

type indexManifest struct {
	Indexes []struct {
		Name       string `json:"name"`
		Table      string `json:"table"`
		IndexRows  int    `json:"index_rows"`
		SourceRows int    `json:"source_rows"`
	} `json:"indexes"`
}

// IndexStats reads the search-index manifest the platform indexer writes
// next to the laws directory. A missing manifest yields no stats; the health
// stage treats that as "no index to verify" rather than a defect.
func (r *Repository) IndexStats(ctx context.Context) ([]corpus.IndexStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(filepath.Dir(r.lawsDir), "search_index.json")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index manifest: %w", err)
	}
	var manifest indexManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse index manifest: %w", err)
	}
	stats := make([]corpus.IndexStat, 0, len(manifest.Indexes))
	for _, idx := range manifest.Indexes {
		stats = append(stats, corpus.IndexStat{
			Name:       idx.Name,
			Table:      idx.Table,
			IndexRows:  idx.IndexRows,
			SourceRows: idx.SourceRows,
		})
	}
	return stats, nil
}

func listJSONIDs(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus dir %s: %w", dir, err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func parseArticleNumber(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if n, ok := arabiclex.ParseNumber(asString); ok {
			return n
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
