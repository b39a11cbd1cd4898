package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/hyperjump/codelod/internal/pipeline"
)

var _ pipeline.Writer = (*BleveIndex)(nil)

// textFields are analyzed with the standard analyzer; everything else is matched exactly.
var textFields = []string{"name", "parent", "description"}

// BleveIndex stores one document per described entity.
type BleveIndex struct {
	index  bleve.Index
	logger *zap.Logger
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping, remove the index directory to force a rebuild.
func NewBleveIndex(path string, logger *zap.Logger) (*BleveIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index, logger: logger}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index, logger: logger}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	// Standard analyzer: lowercase and tokenize without stemming, so identifiers match as written.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	for _, f := range textFields {
		doc.AddFieldMappingsAt(f, text)
	}
	kw := bleve.NewKeywordFieldMapping()
	for _, f := range []string{"path", "scope", "language", "hash"} {
		doc.AddFieldMappingsAt(f, kw)
	}
	doc.AddFieldMappingsAt("start_line", bleve.NewNumericFieldMapping())

	im.DefaultMapping = doc
	return im
}

// Write replaces every document of out's file in one batch.
func (b *BleveIndex) Write(ctx context.Context, out pipeline.FileOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	docs := Documents(out)
	path := out.KeyPath
	if path == "" {
		path = out.Path
	}

	existing, err := b.idsForPath(path)
	if err != nil {
		return err
	}
	batch := b.index.NewBatch()
	keep := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		id := d.ID()
		keep[id] = struct{}{}
		if err := batch.Index(id, d); err != nil {
			return fmt.Errorf("index %s: %w", id, err)
		}
	}
	for _, id := range existing {
		if _, ok := keep[id]; !ok {
			batch.Delete(id)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch for %s failed: %w", path, err)
	}
	b.logger.Debug("Indexed descriptions", zap.String("path", path), zap.Int("documents", len(docs)))
	return nil
}

// DeleteFile removes every document belonging to path.
func (b *BleveIndex) DeleteFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ids, err := b.idsForPath(path)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve delete for %s failed: %w", path, err)
	}
	return nil
}

func (b *BleveIndex) idsForPath(path string) ([]string, error) {
	q := bleve.NewTermQuery(path)
	q.SetField("path")

	const page = 1000
	var ids []string
	for from := 0; ; from += page {
		req := bleve.NewSearchRequestOptions(q, page, from, false)
		res, err := b.index.Search(req)
		if err != nil {
			return nil, fmt.Errorf("Bleve lookup for %s failed: %w", path, err)
		}
		for _, hit := range res.Hits {
			ids = append(ids, hit.ID)
		}
		if len(res.Hits) < page {
			return ids, nil
		}
	}
}

// Search runs query over names and descriptions and returns up to limit results.
// When opts.NameBoost > 1, name matches outrank description matches.
// When opts.FuzzyEnabled is true, each term also matches within opts.Fuzziness edits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if opts == nil {
		opts = &SearchOptions{}
	}
	fuzziness := opts.Fuzziness
	if fuzziness <= 0 {
		fuzziness = 2
	}

	nameBoost := 1.0
	if opts.NameBoost > 1 {
		nameBoost = opts.NameBoost
	}
	fieldQueries := make([]blevequery.Query, 0, len(textFields))
	for _, f := range textFields {
		boost := 1.0
		if f == "name" {
			boost = nameBoost
		}
		fieldQueries = append(fieldQueries, b.fieldQuery(query, f, boost, opts.FuzzyEnabled, fuzziness))
	}
	var q blevequery.Query = bleve.NewDisjunctionQuery(fieldQueries...)

	var filters []blevequery.Query
	if opts.Scope != "" {
		tq := bleve.NewTermQuery(opts.Scope)
		tq.SetField("scope")
		filters = append(filters, tq)
	}
	if opts.Language != "" {
		tq := bleve.NewTermQuery(opts.Language)
		tq.SetField("language")
		filters = append(filters, tq)
	}
	if len(filters) > 0 {
		q = bleve.NewConjunctionQuery(append([]blevequery.Query{q}, filters...)...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score, Doc: documentFromFields(hit.Fields)}
	}
	return out, nil
}

// fieldQuery matches query against one field: a plain match query, or a disjunction
// of per-term fuzzy queries.
func (b *BleveIndex) fieldQuery(query, field string, boost float64, fuzzy bool, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(query)
	if !fuzzy || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func documentFromFields(fields map[string]interface{}) *Document {
	str := func(k string) string {
		s, _ := fields[k].(string)
		return s
	}
	d := &Document{
		Path:        str("path"),
		Name:        str("name"),
		Parent:      str("parent"),
		Scope:       str("scope"),
		Language:    str("language"),
		Hash:        str("hash"),
		Description: str("description"),
	}
	if n, ok := fields["start_line"].(float64); ok {
		d.StartLine = int(n)
	}
	return d
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Terms returns every indexed name and description term with its document frequency.
func (b *BleveIndex) Terms() (map[string]int, error) {
	terms := make(map[string]int)
	for _, field := range textFields {
		dict, err := b.index.FieldDict(field)
		if err != nil {
			return nil, fmt.Errorf("read %s terms: %w", field, err)
		}
		for {
			entry, err := dict.Next()
			if err != nil {
				dict.Close()
				return nil, fmt.Errorf("read %s terms: %w", field, err)
			}
			if entry == nil {
				break
			}
			if int(entry.Count) > terms[entry.Term] {
				terms[entry.Term] = int(entry.Count)
			}
		}
		dict.Close()
	}
	return terms, nil
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
