package client

// PageResult is one page of a paginated WaniKani collection.
type PageResult struct {
	Object        string    `json:"object"`
	URL           string    `json:"url"`
	Pages         Pages     `json:"pages"`
	TotalCount    int       `json:"total_count"`
	DataUpdatedAt string    `json:"data_updated_at,omitempty"`
	Data          []Subject `json:"data"`
}

// Pages is the pagination block of a collection response.
type Pages struct {
	PerPage     int     `json:"per_page"`
	NextURL     *string `json:"next_url"`
	PreviousURL *string `json:"previous_url"`
}

// Next returns the follow-up page URL. An empty or null next_url means
// the collection is exhausted.
func (p Pages) Next() (string, bool) {
	if p.NextURL == nil || *p.NextURL == "" {
		return "", false
	}
	return *p.NextURL, true
}

// Subject is a single record of the subjects collection. Object is the
// kind tag ("radical", "kanji", "vocabulary", "kana_vocabulary").
type Subject struct {
	ID            int         `json:"id"`
	Object        string      `json:"object"`
	URL           string      `json:"url,omitempty"`
	DataUpdatedAt string      `json:"data_updated_at,omitempty"`
	Data          SubjectData `json:"data"`
}

// SubjectData holds the subject fields used to build dictionary rows.
type SubjectData struct {
	Level       int       `json:"level,omitempty"`
	Slug        string    `json:"slug"`
	Characters  *string   `json:"characters,omitempty"`
	DocumentURL string    `json:"document_url,omitempty"`
	Meanings    []Meaning `json:"meanings"`
}

// Meaning is one accepted meaning of a subject.
type Meaning struct {
	Meaning        string `json:"meaning"`
	Primary        bool   `json:"primary"`
	AcceptedAnswer bool   `json:"accepted_answer"`
}

// MeaningTexts returns the meaning strings in API order.
func (s Subject) MeaningTexts() []string {
	out := make([]string, 0, len(s.Data.Meanings))
	for _, m := range s.Data.Meanings {
		out = append(out, m.Meaning)
	}
	return out
}
