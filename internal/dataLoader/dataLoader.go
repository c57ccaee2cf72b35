package dataloader

import (
	"context"
	"strings"
	"time"

	"hrloader/internal/config"
	"hrloader/internal/db"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Stage int

const (
	StageConnect Stage = iota
	StageSchema
	StageLoad
	StageBulk
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageConnect:
		return "connect"
	case StageSchema:
		return "schema"
	case StageLoad:
		return "load"
	case StageBulk:
		return "bulk"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// Report tells how far a run got. Stage is the last stage entered.
type Report struct {
	Stage    Stage
	Total    int
	Filtered int
	Indexed  int
	Failed   int
}

type Dialer func(ctx context.Context, cfg config.Elastic) (db.Store, error)

type Loader struct {
	Config   config.Config
	Criteria Criteria
	Log      logrus.FieldLogger
	Dial     Dialer
}

// New returns a loader talking to Elasticsearch through db.ElasticStore.
func New(cfg config.Config, log logrus.FieldLogger) *Loader {
	return &Loader{
		Config:   cfg,
		Criteria: CriteriaFromConfig(cfg.Filter),
		Log:      log,
		Dial: func(ctx context.Context, ec config.Elastic) (db.Store, error) {
			return db.NewElasticStore(ec, log, nil)
		},
	}
}

// Run executes connect, schema, load, bulk in order and stops at the first
// failure, which has already been logged when it is returned. An empty
// filtered set ends the run early with a nil error.
func (l *Loader) Run(ctx context.Context) (Report, error) {
	var rep Report
	cfg := l.Config
	index := cfg.Elastic.Index
	host := strings.Join(cfg.Elastic.Addresses, ",")

	l.Log.Info("Starting HR data loading pipeline to Elasticsearch")

	rep.Stage = StageConnect
	store, err := l.Dial(ctx, cfg.Elastic)
	if err == nil {
		err = store.Ping(ctx)
	}
	if err != nil {
		l.Log.Errorf("Elasticsearch connection error: %s", err)
		return rep, errors.Wrap(err, "connect")
	}
	l.Log.Infof("Connected to Elasticsearch at %s", host)

	rep.Stage = StageSchema
	mapping, err := ReadJSON(cfg.MappingPath, l.Log)
	if err == nil {
		err = EnsureIndex(ctx, store, index, mapping, l.Log)
	}
	if err != nil {
		l.Log.Errorf("Index mapping error: %s", err)
		return rep, errors.Wrap(err, "index mapping")
	}

	rep.Stage = StageLoad
	records, err := l.loadRecords(cfg.DataPath)
	if err != nil {
		return rep, err
	}
	rep.Total = len(records)

	filtered := l.Criteria.Apply(records, l.Log)
	rep.Filtered = len(filtered)
	if len(filtered) == 0 {
		l.Log.Warn("No records remain after filtering")
		return rep, nil
	}

	rep.Stage = StageBulk
	res, err := store.Bulk(ctx, GenerateActions(index, filtered, l.Log))
	rep.Indexed, rep.Failed = res.Indexed, res.Failed
	if err == nil && res.Failed > 0 {
		err = errors.Errorf("%s of %s documents failed to index",
			humanize.Comma(int64(res.Failed)), humanize.Comma(int64(len(filtered))))
	}
	if err != nil {
		l.Log.Errorf("Data loading error: %s", err)
		return rep, errors.Wrap(err, "bulk")
	}
	l.Log.Infof("Successfully loaded %s documents into index '%s' in %s (%s docs/sec)",
		humanize.Comma(int64(res.Indexed)),
		index,
		res.Took.Truncate(time.Millisecond),
		humanize.Comma(rate(res.Indexed, res.Took)),
	)

	rep.Stage = StageDone
	l.Log.Info("Pipeline execution completed successfully")
	return rep, nil
}

func (l *Loader) loadRecords(path string) ([]db.Record, error) {
	raw, err := ReadJSON(path, l.Log)
	if errors.Is(err, ErrFileNotFound) {
		l.Log.Warnf("Source data file not found. To run pipeline, place data file at %s "+
			"or set DATA_PATH environment variable", path)
		return nil, errors.Wrap(err, "data")
	}
	if err != nil {
		l.Log.Errorf("Data loading error: %s", err)
		return nil, errors.Wrap(err, "data")
	}

	list, ok := raw.([]any)
	if !ok {
		l.Log.Error("Expected list of records in JSON source")
		return nil, ErrNotAList
	}
	records := make([]db.Record, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			err := errors.Wrapf(ErrNotAList, "item %d is %T, not an object", i, item)
			l.Log.Errorf("Data loading error: %s", err)
			return nil, err
		}
		records = append(records, db.Record(obj))
	}
	return records, nil
}

func rate(n int, d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms <= 0 {
		return int64(n)
	}
	return int64(1000.0 / float64(ms) * float64(n))
}
