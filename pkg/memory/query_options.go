package memory

// SearchOpt narrows a [SessionStore.Search].
type SearchOpt func(*searchOptions)

type searchOptions struct {
	sessionID string
	speaker   string
	limit     int
}

// InSession restricts the search to one session.
func InSession(id string) SearchOpt {
	return func(o *searchOptions) { o.sessionID = id }
}

// BySpeaker restricts results to one speaker (exact match).
func BySpeaker(name string) SearchOpt {
	return func(o *searchOptions) { o.speaker = name }
}

// WithLimit caps the number of results. Zero or less means no cap.
func WithLimit(n int) SearchOpt {
	return func(o *searchOptions) { o.limit = n }
}

// SearchParams holds the resolved values of a slice of [SearchOpt]. Storage
// backends outside this package read options through it.
type SearchParams struct {
	SessionID string
	Speaker   string
	Limit     int
}

// ApplySearchOpts resolves opts into [SearchParams].
func ApplySearchOpts(opts []SearchOpt) SearchParams {
	o := &searchOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return SearchParams{SessionID: o.sessionID, Speaker: o.speaker, Limit: o.limit}
}
