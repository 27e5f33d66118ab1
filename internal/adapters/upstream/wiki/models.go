package wiki

import "encoding/json"

// queryResponse is the subset of the knowledge source's batched query
// reply we care about: title resolution chains, page records, and the
// category continuation token
type queryResponse struct {
	Continue struct {
		Clcontinue string `json:"clcontinue"`
		Continue   string `json:"continue"`
	} `json:"continue"`
	Query struct {
		Normalized []titleMap          `json:"normalized"`
		Redirects  []titleMap          `json:"redirects"`
		Pages      map[string]wikiPage `json:"pages"`
	} `json:"query"`
}

type titleMap struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type wikiPage struct {
	PageID    int             `json:"pageid"`
	NS        int             `json:"ns"`
	Title     string          `json:"title"`
	Missing   json.RawMessage `json:"missing"`
	PageProps map[string]any  `json:"pageprops"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories"`
	Extract string `json:"extract"`
}

func (p wikiPage) missing() bool { return p.Missing != nil }

func (p wikiPage) disambiguation() bool {
	_, ok := p.PageProps["disambiguation"]
	return ok
}

// chunkResult carries one chunk's resolution chains and pages, or the
// failure that exhausted its retries
type chunkResult struct {
	normalized map[string]string
	redirects  map[string]string
	pages      map[string]wikiPage // by title
	err        error
}

// resolution is the per-name state of the two pass pipeline
type resolutionState uint8

const (
	statePending resolutionState = iota
	stateResolved
	stateFailed
)

type resolution struct {
	state       resolutionState
	description string
	// revised is the query to issue on the second pass
	revised string
	// chunkFailed marks names whose upstream chunk never answered, so the
	// null outcome is cached with the short TTL
	chunkFailed bool
}
