package types

import (
	"encoding/json"
	"time"
)

// Row is one unit of work taken from the input table. Index is the row's
// position in the (possibly sampled) table and is stable for the whole run.
type Row struct {
	Index   int
	Payload string
	ID      string
	Author  string
}

// Record is one checkpointed outcome for a row. A response that parses to an
// array fans out into several records sharing the same RowIndex.
type Record struct {
	RowIndex    int
	Success     bool
	ParsingOK   bool
	FromCache   bool
	Fields      map[string]any
	RawResponse string
	HasRaw      bool
	Error       string
}

// Reserved JSONL keys; everything else on a checkpoint line is an extracted field.
const (
	keyRowIndex  = "row_index"
	keySuccess   = "success"
	keyParsing   = "parsing_success"
	keyFromCache = "from_cache"
	keyRaw       = "raw_response"
	keyError     = "error"
)

// MarshalJSON flattens Fields next to the fixed diagnostic keys, matching the
// one-object-per-line checkpoint format.
func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+6)
	for k, v := range r.Fields {
		m[k] = v
	}
	m[keyRowIndex] = r.RowIndex
	m[keySuccess] = r.Success
	m[keyParsing] = r.ParsingOK
	m[keyFromCache] = r.FromCache
	if r.HasRaw {
		m[keyRaw] = r.RawResponse
	} else {
		m[keyRaw] = nil
	}
	if r.Error != "" {
		m[keyError] = r.Error
	} else {
		m[keyError] = nil
	}
	return json.Marshal(m)
}

// UnmarshalJSON is the inverse of MarshalJSON: fixed keys are pulled out and
// the remainder becomes Fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if v, ok := m[keyRowIndex].(float64); ok {
		r.RowIndex = int(v)
	}
	if v, ok := m[keySuccess].(bool); ok {
		r.Success = v
	}
	if v, ok := m[keyParsing].(bool); ok {
		r.ParsingOK = v
	}
	if v, ok := m[keyFromCache].(bool); ok {
		r.FromCache = v
	}
	if v, ok := m[keyRaw].(string); ok {
		r.RawResponse = v
		r.HasRaw = true
	}
	if v, ok := m[keyError].(string); ok {
		r.Error = v
	}
	delete(m, keyRowIndex)
	delete(m, keySuccess)
	delete(m, keyParsing)
	delete(m, keyFromCache)
	delete(m, keyRaw)
	delete(m, keyError)
	if len(m) > 0 {
		r.Fields = m
	}
	return nil
}

// CleaningOptions selects the transformations the preprocessing service
// applies to a text. Serialized into the request payload (json tags) and
// read from the config file (yaml tags).
type CleaningOptions struct {
	RemovePII            bool `json:"remove_pii" yaml:"remove_pii"`
	EmojiConvert         bool `json:"emoji_convert" yaml:"emoji_convert"`
	EmojiRemove          bool `json:"emoji_remove" yaml:"emoji_remove"`
	RemoveSocialMentions bool `json:"remove_social_mentions" yaml:"remove_social_mentions"`
	RemoveReposts        bool `json:"remove_weibo_reposts" yaml:"remove_reposts"`
	RemoveHashtags       bool `json:"remove_hashtags" yaml:"remove_hashtags"`
	EnableAuthorBlocks   bool `json:"enable_author_blacklist" yaml:"enable_author_blacklist"`
	RemoveAds            bool `json:"remove_ads" yaml:"remove_ads"`
	RemoveURLs           bool `json:"remove_urls" yaml:"remove_urls"`
	NormalizeWhitespace  bool `json:"normalize_whitespace" yaml:"normalize_whitespace"`
	NormalizeUnicode     bool `json:"normalize_unicode" yaml:"normalize_unicode"`
	ConvertFullwidth     bool `json:"convert_fullwidth" yaml:"convert_fullwidth"`
	DetectLanguage       bool `json:"detect_language" yaml:"detect_language"`
	SplitSentences       bool `json:"split_sentences" yaml:"split_sentences"`
	MaxLength            int  `json:"max_length" yaml:"max_length"`
	MinLength            int  `json:"min_length" yaml:"min_length"`
}

// Run records one batch run in the history store.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path"`
	Model      string    `json:"model"`
	TotalRows  int       `json:"total_rows"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	APICalls   int       `json:"api_calls"`
	CacheHits  int       `json:"cache_hits"`
	Status     string    `json:"status"`
	ErrorMsg   string    `json:"error_msg"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
