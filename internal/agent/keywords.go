package agent

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nhle/omninexus/internal/model"
)

// TypeKeywordExtractor is the registry name of the keyword extractor.
const TypeKeywordExtractor = "keyword_extractor"

const (
	ParamNumKeywords   = "num_keywords"
	ParamMinWordLength = "min_word_length"

	defaultNumKeywords   = 10
	defaultMinWordLength = 3
)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a about above after again against all am an and any are as at be because
		been before being below between both but by can could did do does doing
		down during each few for from further had has have having he her here
		hers herself him himself his how i if in into is it its itself just me
		more most my myself no nor not now of off on once only or other our ours
		ourselves out over own same she should so some such than that the their
		theirs them themselves then there these they this those through to too
		under until up very was we were what when where which while who whom why
		will with would you your yours yourself yourselves also get got one two
		may might must shall us via yet`) {
		stopWords[w] = struct{}{}
	}
}

// Keyword is one extracted term with its frequency score.
type Keyword struct {
	Word  string `json:"word"`
	Score int    `json:"score"`
}

// KeywordExtractor ranks the most frequent non-stop-words.
type KeywordExtractor struct {
	id            string
	numKeywords   int
	minWordLength int
}

// NewKeywordExtractor builds an extractor. cfg may set num_keywords and
// min_word_length; both must be positive.
func NewKeywordExtractor(id string, cfg map[string]any) (Agent, error) {
	k := &KeywordExtractor{
		id:            id,
		numKeywords:   defaultNumKeywords,
		minWordLength: defaultMinWordLength,
	}
	var err error
	if k.numKeywords, err = positiveInt(cfg, ParamNumKeywords, k.numKeywords); err != nil {
		return nil, err
	}
	if k.minWordLength, err = positiveInt(cfg, ParamMinWordLength, k.minWordLength); err != nil {
		return nil, err
	}
	return k, nil
}

func positiveInt(cfg map[string]any, key string, def int) (int, error) {
	raw, ok := cfg[key]
	if !ok {
		return def, nil
	}
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func (k *KeywordExtractor) ID() string   { return k.id }
func (k *KeywordExtractor) Type() string { return TypeKeywordExtractor }

func (k *KeywordExtractor) GetMetadata() map[string]any {
	return map[string]any{
		"agent_id":        k.id,
		"type":            TypeKeywordExtractor,
		"description":     "Extracts the most frequent non-stop-words from record content.",
		"num_keywords":    k.numKeywords,
		"min_word_length": k.minWordLength,
		"output_format":   "keywords [{word, score}], items_processed, items_skipped",
	}
}

// Execute counts candidate words across all records and returns the top
// num_keywords by frequency, ties broken alphabetically.
func (k *KeywordExtractor) Execute(records []model.Record, params Params) (map[string]any, error) {
	num, minLen := k.numKeywords, k.minWordLength
	if v, ok := params[ParamNumKeywords]; ok {
		if v < 1 {
			return nil, fmt.Errorf("%s must be positive, got %d", ParamNumKeywords, v)
		}
		num = v
	}
	if v, ok := params[ParamMinWordLength]; ok {
		if v < 1 {
			return nil, fmt.Errorf("%s must be positive, got %d", ParamMinWordLength, v)
		}
		minLen = v
	}

	counts := map[string]int{}
	processed, skipped := 0, 0
	for _, r := range records {
		content, ok := r.Content()
		if !ok {
			skipped++
			continue
		}
		processed++
		for _, w := range wordPattern.FindAllString(strings.ToLower(content), -1) {
			if utf8.RuneCountInString(w) < minLen || isNumeric(w) {
				continue
			}
			if _, stop := stopWords[w]; stop {
				continue
			}
			counts[w]++
		}
	}

	keywords := make([]Keyword, 0, len(counts))
	for w, n := range counts {
		keywords = append(keywords, Keyword{Word: w, Score: n})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Score != keywords[j].Score {
			return keywords[i].Score > keywords[j].Score
		}
		return keywords[i].Word < keywords[j].Word
	})
	if len(keywords) > num {
		keywords = keywords[:num]
	}

	return map[string]any{
		"keywords":        keywords,
		"items_processed": processed,
		"items_skipped":   skipped,
	}, nil
}

func isNumeric(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
