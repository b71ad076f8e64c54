package render

import (
	"time"

	"jellydiscord/internal/model"
)

// Context is the data every named template renders against — exactly the
// map spec.md §4.F documents, so templates consume only this shape and
// nothing from the wider pipeline.
type Context struct {
	Record        *model.Record
	Action        model.Action
	ThumbnailURL  string
	Changes       []model.Change
	Timestamp     string
	ServerBaseURL string
	Color         int
	Bundle        model.Bundle
}

// newContext assembles a render Context for a single delivery.
func newContext(record *model.Record, action model.Action, thumbnailURL string, changes []model.Change, serverBaseURL string, bundle model.Bundle, color int) Context {
	return Context{
		Record:        record,
		Action:        action,
		ThumbnailURL:  thumbnailURL,
		Changes:       changes,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		ServerBaseURL: serverBaseURL,
		Color:         color,
		Bundle:        bundle,
	}
}
