package refine

import (
	"context"
	"log"
)

// DefaultBatchSize bounds the number of candidates per provider
// request to keep token counts manageable.
const DefaultBatchSize = 120

// ProgressFunc receives (itemsProcessedSoFar, totalItems) after every
// batch, including failed ones.
type ProgressFunc func(done, total int)

// Refiner runs the optional re-scoring pass. Batches are processed
// sequentially, never concurrently: provider rate limits stay
// predictable and progress keeps a simple linear meaning.
type Refiner struct {
	client    *Client
	batchSize int
}

// NewRefiner creates a refiner with the default batch size.
func NewRefiner(client *Client) *Refiner {
	return &Refiner{client: client, batchSize: DefaultBatchSize}
}

// NewRefinerWithBatchSize creates a refiner with a custom batch size.
func NewRefinerWithBatchSize(client *Client, batchSize int) *Refiner {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Refiner{client: client, batchSize: batchSize}
}

// Refine rates all candidates and returns accepted refinements keyed
// by Key(page, text). A failed batch keeps its candidates out of the
// map (callers fall back to heuristic values for those) and never
// aborts the remaining batches. Context cancellation is checked at
// batch boundaries and returns whatever was merged so far; it is an
// early-return path, not an error.
func (r *Refiner) Refine(ctx context.Context, candidates []Candidate, onProgress ProgressFunc) map[string]Refinement {
	results := make(map[string]Refinement)
	if len(candidates) == 0 {
		return results
	}

	total := len(candidates)
	done := 0

	for start := 0; start < total; start += r.batchSize {
		if ctx.Err() != nil {
			break
		}

		end := start + r.batchSize
		if end > total {
			end = total
		}
		batch := candidates[start:end]

		refinements, err := r.client.RateBatch(ctx, batch)
		if err != nil {
			// Partial failure: keep heuristic scores for this batch.
			log.Printf("[refine] batch of %d failed, keeping heuristic scores: %v", len(batch), err)
		} else {
			for _, ref := range refinements {
				results[Key(ref.Page, ref.Text)] = ref
			}
		}

		done += len(batch)
		if onProgress != nil {
			onProgress(done, total)
		}
	}

	return results
}
