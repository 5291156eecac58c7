package history

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("history entry not found")

type Action string

const (
	ActionReplace Action = "replace"
	ActionAppend  Action = "append"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
)

// Entry is one successful write to a content file.
type Entry struct {
	ID           string    `json:"id" bson:"id"`
	File         string    `json:"file" bson:"file"`
	Action       Action    `json:"action" bson:"action"`
	Backup       string    `json:"backup" bson:"backup"`
	RestoredFrom string    `json:"restoredFrom,omitempty" bson:"restoredFrom,omitempty"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// Repository persists the audit trail. List returns newest first; limit <= 0
// means no limit.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, file string, limit int) ([]*Entry, error)
}
