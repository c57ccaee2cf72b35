package dataloader

import (
	"context"

	"hrloader/internal/db"

	"github.com/sirupsen/logrus"
)

// EnsureIndex creates the index with mapping unless it already exists.
// Store errors are returned untouched.
func EnsureIndex(ctx context.Context, store db.Store, name string, mapping any, log logrus.FieldLogger) error {
	exists, err := store.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		log.Infof("Index '%s' already exists", name)
		return nil
	}
	if err := store.CreateIndex(ctx, name, mapping); err != nil {
		return err
	}
	log.Infof("Index '%s' created", name)
	return nil
}
