package db

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"iter"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"hrloader/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	bulkFlushBytes    = 5e+6
	bulkFlushInterval = 30 * time.Second
)

type ElasticStore struct {
	Es  *elasticsearch.Client
	log logrus.FieldLogger
}

var _ Store = (*ElasticStore)(nil)

// NewElasticStore builds the client. A nil transport gets an http.Transport
// honouring cfg.VerifyCerts and cfg.RequestTimeout.
func NewElasticStore(cfg config.Elastic, log logrus.FieldLogger, transport http.RoundTripper) (*ElasticStore, error) {
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: cfg.RequestTimeout,
			TLSClientConfig:       &tls.Config{InsecureSkipVerify: !cfg.VerifyCerts}, //nolint:gosec
		}
	}

	retryBackoff := backoff.NewExponentialBackOff()
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
		// Retry on 429 TooManyRequests statuses
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: cfg.MaxRetries,
		// zero would mean the transport default of 3
		DisableRetry: cfg.MaxRetries == 0,
	}
	if cfg.Trace {
		esCfg.Logger = &elastictransport.TextLogger{Output: os.Stdout}
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, errors.Wrap(err, "error creating Elasticsearch client")
	}
	return &ElasticStore{Es: es, log: log}, nil
}

func (store *ElasticStore) Ping(ctx context.Context) error {
	res, err := store.Es.Info(store.Es.Info.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "cluster info")
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.Errorf("cluster info: %s", res.String())
	}
	return nil
}

func (store *ElasticStore) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := store.Es.Indices.Exists(
		[]string{name},
		store.Es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, errors.Wrapf(err, "check index %s", name)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, errors.Errorf("check index %s: %s", name, res.String())
	}
}

func (store *ElasticStore) CreateIndex(ctx context.Context, name string, body any) error {
	res, err := store.Es.Indices.Create(
		name,
		store.Es.Indices.Create.WithContext(ctx),
		store.Es.Indices.Create.WithBody(esutil.NewJSONReader(body)),
	)
	if err != nil {
		return errors.Wrapf(err, "create index %s", name)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.Errorf("error creating index %s: %s", name, res.String())
	}
	return nil
}

func (store *ElasticStore) Bulk(ctx context.Context, actions iter.Seq[Action]) (BulkResult, error) {
	var (
		countSuccessful uint64
		flushErr        error
		flushErrOnce    sync.Once
	)
	start := time.Now().UTC()

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        store.Es,
		NumWorkers:    1,
		FlushBytes:    bulkFlushBytes,
		FlushInterval: bulkFlushInterval,
		OnError: func(ctx context.Context, err error) {
			flushErrOnce.Do(func() { flushErr = err })
		},
	})
	if err != nil {
		return BulkResult{}, errors.Wrap(err, "error creating the indexer")
	}

	var addErr error
	for a := range actions {
		data, err := json.Marshal(a.Source)
		if err != nil {
			addErr = errors.Wrapf(err, "cannot encode document for %s", a.Index)
			break
		}

		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action: "index",
			Index:  a.Index,
			Body:   bytes.NewReader(data),
			OnSuccess: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem) {
				atomic.AddUint64(&countSuccessful, 1)
			},
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					store.log.WithField("index", item.Index).Errorf("Bulk item failed: %s", err)
				} else {
					store.log.WithField("index", item.Index).Errorf("Bulk item failed: %s: %s", res.Error.Type, res.Error.Reason)
				}
			},
		})
		if err != nil {
			addErr = errors.Wrap(err, "add bulk item")
			break
		}
	}

	closeErr := bi.Close(ctx)
	stats := bi.Stats()
	result := BulkResult{
		Indexed:  int(atomic.LoadUint64(&countSuccessful)),
		Failed:   int(stats.NumFailed),
		Requests: int(stats.NumRequests),
		Took:     time.Since(start),
	}

	switch {
	case addErr != nil:
		return result, addErr
	case closeErr != nil:
		return result, errors.Wrap(closeErr, "close bulk indexer")
	case flushErr != nil:
		return result, errors.Wrap(flushErr, "bulk request")
	}
	return result, nil
}
