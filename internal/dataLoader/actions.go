package dataloader

import (
	"iter"

	"hrloader/internal/db"

	"github.com/sirupsen/logrus"
)

const progressEvery = 100

// GenerateActions yields one index action per record, lazily. Progress is
// logged at debug level after every 100th action handed out.
func GenerateActions(index string, records []db.Record, log logrus.FieldLogger) iter.Seq[db.Action] {
	return func(yield func(db.Action) bool) {
		for i, r := range records {
			if !yield(db.Action{Index: index, Source: r}) {
				return
			}
			if n := i + 1; n%progressEvery == 0 {
				log.Debugf("Prepared %d documents for bulk upload", n)
			}
		}
	}
}
