package dataloader

import (
	"context"
	"iter"

	"hrloader/internal/db"
)

type fakeStore struct {
	pingErr    error
	exists     bool
	existsErr  error
	createErr  error
	failBulkOn string

	existsCalls int
	created     []any
	bulkCalls   int
	actions     []db.Action
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) IndexExists(ctx context.Context, name string) (bool, error) {
	f.existsCalls++
	return f.exists, f.existsErr
}

func (f *fakeStore) CreateIndex(ctx context.Context, name string, body any) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, body)
	f.exists = true
	return nil
}

func (f *fakeStore) Bulk(ctx context.Context, actions iter.Seq[db.Action]) (db.BulkResult, error) {
	f.bulkCalls++
	var res db.BulkResult
	for a := range actions {
		f.actions = append(f.actions, a)
		if f.failBulkOn != "" && a.Source["name"] == f.failBulkOn {
			res.Failed++
			continue
		}
		res.Indexed++
	}
	res.Requests = 1
	return res, nil
}
