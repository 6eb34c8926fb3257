// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"newswatcher/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	CreateSource(ctx context.Context, s *model.Source) error
	GetSource(ctx context.Context, id int64) (*model.Source, error)
	ListSources(ctx context.Context, userID int64) ([]model.Source, error)
	ListActiveSources(ctx context.Context) ([]model.Source, error)
	UpdateSource(ctx context.Context, s *model.Source) error
	TouchSourceFetched(ctx context.Context, id int64, at time.Time) error

	InsertItem(ctx context.Context, item *model.Item) (bool, error)
	ListItems(ctx context.Context, sourceID int64) ([]model.Item, error)

	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	ListActiveTasks(ctx context.Context, userID int64) ([]model.Task, error)
	UpdateTask(ctx context.Context, t *model.Task) error
	DeleteTask(ctx context.Context, id int64) error

	CreateLink(ctx context.Context, sourceID, taskID int64) error
	DeleteLink(ctx context.Context, sourceID, taskID int64) error
	ListLinkedSources(ctx context.Context, taskID int64) ([]model.Source, error)

	ListEligibleItems(ctx context.Context, taskID int64, cutoff time.Time) ([]model.Item, error)
	SaveVerdict(ctx context.Context, v *model.Verdict) error
	GetVerdict(ctx context.Context, itemID, taskID int64) (*model.Verdict, error)
	ListVerdicts(ctx context.Context, taskID int64) ([]model.Verdict, error)

	Close() error
}
