// Package search keeps candidate person records in an Elasticsearch index and
// serves the fuzzy retrieval tier from it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"matching-workers/internal/common/logger"
	"matching-workers/internal/matching"
	"matching-workers/internal/matching/similarity"
	"matching-workers/internal/models"
)

// maxFuzzyHits bounds one fuzzy search; hits are re-checked locally anyway.
const maxFuzzyHits = 500

// Document is the indexed form of a candidate. The document id is the
// account id, so each account has at most one document.
type Document struct {
	AccountID   int64           `json:"account_id"`
	RecordID    int64           `json:"record_id"`
	FirstName   string          `json:"first_name"`
	MiddleName  string          `json:"middle_name,omitempty"`
	LastName    string          `json:"last_name"`
	PhoneNumber string          `json:"phone_number,omitempty"`
	Address     *models.Address `json:"address,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func NewDocument(rec models.CandidateRecord) Document {
	return Document{
		AccountID:   rec.AccountID,
		RecordID:    rec.ID,
		FirstName:   rec.FirstName,
		MiddleName:  rec.MiddleName,
		LastName:    rec.LastName,
		PhoneNumber: rec.PhoneNumber,
		Address:     rec.Address,
		CreatedAt:   rec.CreatedAt,
	}
}

func (d Document) Record() models.CandidateRecord {
	return models.CandidateRecord{
		ID:          d.RecordID,
		AccountID:   d.AccountID,
		FirstName:   d.FirstName,
		MiddleName:  d.MiddleName,
		LastName:    d.LastName,
		PhoneNumber: d.PhoneNumber,
		Address:     d.Address,
		CreatedAt:   d.CreatedAt,
	}
}

type Index struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndex(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	return &Index{
		client: client,
		index:  index,
		logger: logger.ForComponent(log, "candidate-index").WithFields(map[string]interface{}{"index": index}),
	}
}

// FindCandidatesFuzzy runs a fuzzy bool/should query on first and last name and
// keeps only hits whose similarity on either name exceeds threshold. A missing
// index makes the tier Unavailable.
func (i *Index) FindCandidatesFuzzy(ctx context.Context, first, last string, excludeAccount int64, threshold float64) (matching.FuzzyResult, error) {
	body, err := json.Marshal(buildFuzzyQuery(first, last, excludeAccount))
	if err != nil {
		return matching.FuzzyResult{}, fmt.Errorf("encode fuzzy query: %w", err)
	}

	size := maxFuzzyHits
	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return matching.FuzzyResult{}, fmt.Errorf("fuzzy search: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return matching.FuzzyUnavailable(fmt.Sprintf("index %q not found", i.index)), nil
	}
	if res.IsError() {
		return matching.FuzzyResult{}, fmt.Errorf("fuzzy search failed: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return matching.FuzzyResult{}, fmt.Errorf("decode fuzzy search: %w", err)
	}

	out := make([]models.CandidateRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		doc := hit.Source
		if doc.AccountID == excludeAccount {
			continue
		}
		if similarity.Similarity(first, doc.FirstName) > threshold || similarity.Similarity(last, doc.LastName) > threshold {
			out = append(out, doc.Record())
		}
	}

	i.logger.Debug("fuzzy search finished", map[string]interface{}{
		"hits": len(parsed.Hits.Hits),
		"kept": len(out),
	})
	return matching.FuzzyResult{Availability: matching.Available, Candidates: out}, nil
}

// IndexCandidate upserts the candidate's document.
func (i *Index) IndexCandidate(ctx context.Context, rec models.CandidateRecord) error {
	body, err := json.Marshal(NewDocument(rec))
	if err != nil {
		return fmt.Errorf("encode candidate %d: %w", rec.AccountID, err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: strconv.FormatInt(rec.AccountID, 10),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index candidate %d: %w", rec.AccountID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index candidate %d: %s", rec.AccountID, res.String())
	}
	return nil
}

// DeleteCandidate removes the account's document. Deleting a document that
// does not exist is not an error.
func (i *Index) DeleteCandidate(ctx context.Context, accountID int64) error {
	req := esapi.DeleteRequest{
		Index:      i.index,
		DocumentID: strconv.FormatInt(accountID, 10),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("delete candidate %d: %w", accountID, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete candidate %d: %s", accountID, res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// fuzzyMaxExpansions raises the per-clause term expansion above the server
// default of 50.
const fuzzyMaxExpansions = 200

// buildFuzzyQuery matches names within the AUTO edit distance (at most two
// edits) or sharing the first two letters. Names further apart than that
// without a common prefix are not returned even when they would pass the
// similarity threshold; the postgres backend has no such limit.
func buildFuzzyQuery(first, last string, excludeAccount int64) map[string]interface{} {
	fuzzy := func(field, value string) map[string]interface{} {
		return map[string]interface{}{
			"fuzzy": map[string]interface{}{
				field: map[string]interface{}{
					"value":          value,
					"fuzziness":      "AUTO",
					"max_expansions": fuzzyMaxExpansions,
				},
			},
		}
	}

	should := []interface{}{}
	for _, f := range []struct{ field, value string }{{"first_name", first}, {"last_name", last}} {
		value := strings.ToLower(strings.TrimSpace(f.value))
		if value == "" {
			continue
		}
		should = append(should, fuzzy(f.field, value))
		if runes := []rune(value); len(runes) >= 2 {
			should = append(should, map[string]interface{}{
				"prefix": map[string]interface{}{f.field: string(runes[:2])},
			})
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
				"must_not": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"account_id": excludeAccount},
					},
				},
			},
		},
	}
}
