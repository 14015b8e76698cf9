package agent

import "github.com/nhle/omninexus/internal/model"

// TypeWordCounter is the registry name of the word counter.
const TypeWordCounter = "word_counter"

// WordCounter counts words across record contents.
type WordCounter struct {
	id string
}

// NewWordCounter returns a word counter. It takes no configuration.
func NewWordCounter(id string, _ map[string]any) (Agent, error) {
	return &WordCounter{id: id}, nil
}

func (w *WordCounter) ID() string   { return w.id }
func (w *WordCounter) Type() string { return TypeWordCounter }

func (w *WordCounter) GetMetadata() map[string]any {
	return map[string]any{
		"agent_id":      w.id,
		"type":          TypeWordCounter,
		"description":   "Counts the total number of words in record content.",
		"output_format": "total_words, items_processed, items_skipped",
	}
}

// Execute sums word counts over every record with text content.
func (w *WordCounter) Execute(records []model.Record, _ Params) (map[string]any, error) {
	total, processed, skipped := 0, 0, 0
	for _, r := range records {
		content, ok := r.Content()
		if !ok {
			skipped++
			continue
		}
		processed++
		total += len(wordPattern.FindAllStringIndex(content, -1))
	}

	return map[string]any{
		"total_words":     total,
		"items_processed": processed,
		"items_skipped":   skipped,
	}, nil
}
