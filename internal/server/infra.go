package server

import (
	"context"
	"fmt"
	"os"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	gcs "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/adhesive-catalog/internal/analytics"
	"github.com/JakeFAU/adhesive-catalog/internal/analytics/sinks"
	"github.com/JakeFAU/adhesive-catalog/internal/catalog"
	"github.com/JakeFAU/adhesive-catalog/internal/clock/system"
	"github.com/JakeFAU/adhesive-catalog/internal/config"
	"github.com/JakeFAU/adhesive-catalog/internal/content"
	collyfetcher "github.com/JakeFAU/adhesive-catalog/internal/fetcher/colly"
	"github.com/JakeFAU/adhesive-catalog/internal/hash/sha256"
	"github.com/JakeFAU/adhesive-catalog/internal/proxy"
	"github.com/JakeFAU/adhesive-catalog/internal/storage"
	gcsstorage "github.com/JakeFAU/adhesive-catalog/internal/storage/gcs"
	localstorage "github.com/JakeFAU/adhesive-catalog/internal/storage/local"
	memorystorage "github.com/JakeFAU/adhesive-catalog/internal/storage/memory"
	pgstore "github.com/JakeFAU/adhesive-catalog/internal/storage/postgres"
	"github.com/JakeFAU/adhesive-catalog/internal/upstream"
)

// Infra builds the external clients shared by the service and the CLI
// commands and owns their shutdown.
type Infra struct {
	cfg    *config.Config
	logger *zap.Logger

	gcsClient    *gcs.Client
	pubsubClient *pubsub.Client
	productStore *pgstore.ProductStore
	blobStore    storage.BlobStore
	prober       *proxy.Prober
}

// NewInfra returns an Infra with nothing opened yet.
func NewInfra(cfg *config.Config, logger *zap.Logger) *Infra {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Infra{cfg: cfg, logger: logger}
}

// BlobStore opens the configured datasheet blob backend once.
func (i *Infra) BlobStore(ctx context.Context) (storage.BlobStore, error) {
	if i.blobStore != nil {
		return i.blobStore, nil
	}
	var err error
	switch i.cfg.Storage.Backend {
	case config.BackendGCS:
		i.logger.Info("using GCS storage backend", zap.String("bucket", i.cfg.Storage.GCSBucket))
		i.gcsClient, err = gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		i.blobStore, err = gcsstorage.New(i.gcsClient, gcsstorage.Config{
			Bucket: i.cfg.Storage.GCSBucket,
			Prefix: i.cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
	case config.BackendLocal:
		i.logger.Info("using local storage backend", zap.String("dir", i.cfg.Storage.LocalDir))
		i.blobStore, err = localstorage.New(localstorage.Config{BaseDir: i.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
	default:
		i.logger.Info("using in-memory storage backend")
		i.blobStore = memorystorage.NewBlobStore()
	}
	return i.blobStore, nil
}

// Prober returns the upstream product prober, or nil when no upstream is
// configured.
func (i *Infra) Prober() (*proxy.Prober, error) {
	if i.prober != nil || i.cfg.Upstream.BaseURL == "" {
		return i.prober, nil
	}
	up := i.cfg.Upstream
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: up.UserAgent,
		Timeout:   i.cfg.UpstreamTimeout(),
	}, nil)
	var retry upstream.RetryPolicy
	if up.MaxRetries > 0 {
		retry = upstream.NewExponentialRetryPolicy(
			up.MaxRetries+1,
			time.Duration(up.BackoffInitialMs)*time.Millisecond,
			time.Duration(up.BackoffMaxMs)*time.Millisecond,
		)
	}
	prober, err := proxy.NewProber(proxy.Config{
		BaseURL:       up.BaseURL,
		APIKey:        up.APIKey,
		APIKeyHeader:  up.APIKeyHeader,
		ExpectedCount: up.ExpectedCount,
		Variants:      up.Variants,
		MaxPages:      up.MaxPages,
	}, fetcher, retry, i.logger.Named("proxy"))
	if err != nil {
		return nil, fmt.Errorf("upstream prober init failed: %w", err)
	}
	i.logger.Info("upstream prober configured",
		zap.String("base_url", up.BaseURL),
		zap.Int("expected_count", up.ExpectedCount),
		zap.Int("max_pages", up.MaxPages),
	)
	i.prober = prober
	return prober, nil
}

// ProductStore opens the Postgres product table once.
func (i *Infra) ProductStore(ctx context.Context) (*pgstore.ProductStore, error) {
	if i.productStore != nil {
		return i.productStore, nil
	}
	if i.cfg.DB.DSN == "" {
		return nil, fmt.Errorf("db.dsn is not configured")
	}
	store, err := pgstore.NewProductStore(ctx, pgstore.ProductStoreConfig{
		DSN:      i.cfg.DB.DSN,
		Table:    i.cfg.DB.Table,
		MaxConns: int32(i.cfg.DB.MaxOpenConns),
		MinConns: int32(i.cfg.DB.MaxIdleConns),
	})
	if err != nil {
		return nil, fmt.Errorf("product store init failed: %w", err)
	}
	i.logger.Info("product store initialized", zap.String("table", i.cfg.DB.Table))
	i.productStore = store
	return store, nil
}

// CatalogSource returns the configured primary catalog source.
func (i *Infra) CatalogSource(ctx context.Context) (catalog.Source, error) {
	switch i.cfg.Catalog.Source {
	case config.SourceStorage:
		blobs, err := i.BlobStore(ctx)
		if err != nil {
			return nil, err
		}
		src, err := catalog.NewBlobSource(i.cfg.Storage.Backend, blobs, i.cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("blob catalog source: %w", err)
		}
		return src, nil
	case config.SourceUpstream:
		prober, err := i.Prober()
		if err != nil {
			return nil, err
		}
		return proxy.NewSource(prober, i.cfg.Upstream.DefaultQuery), nil
	case config.SourcePostgres:
		store, err := i.ProductStore(ctx)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return catalog.BundledSource{}, nil
	}
}

// Loader wires the primary source, the bundled fallback and the articles into
// a catalog loader.
func (i *Infra) Loader(ctx context.Context) (*catalog.Loader, error) {
	primary, err := i.CatalogSource(ctx)
	if err != nil {
		return nil, err
	}
	var fallback catalog.Source
	if _, bundled := primary.(catalog.BundledSource); !bundled {
		fallback = catalog.BundledSource{}
	}
	return catalog.NewLoader(
		primary,
		fallback,
		i.articles(),
		sha256.New(),
		system.New(),
		i.logger.Named("catalog"),
	), nil
}

func (i *Infra) articles() catalog.ArticleSource {
	if dir := i.cfg.Content.ArticlesDir; dir != "" {
		i.logger.Info("loading articles from directory", zap.String("dir", dir))
		return content.New(os.DirFS(dir), ".")
	}
	return content.NewBundled()
}

// AnalyticsHub starts the search analytics hub with log and Prometheus sinks
// and, when a topic is configured, a Pub/Sub sink. It returns nil when analytics is off.
func (i *Infra) AnalyticsHub(ctx context.Context) (*analytics.Hub, error) {
	if !i.cfg.Analytics.Enabled {
		i.logger.Info("search analytics disabled")
		return nil, nil
	}
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	sinkList := []analytics.Sink{sinks.NewLogSink(i.logger.Named("analytics")), promSink}
	if i.cfg.PubSub.ProjectID != "" && i.cfg.PubSub.TopicName != "" {
		i.pubsubClient, err = pubsub.NewClient(ctx, i.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		publisher := sinks.NewTopicPublisher(i.pubsubClient.Publisher(i.cfg.PubSub.TopicName))
		sinkList = append(sinkList, sinks.NewPubSubSink(publisher))
		i.logger.Info("Pub/Sub analytics sink initialized",
			zap.String("project", i.cfg.PubSub.ProjectID),
			zap.String("topic", i.cfg.PubSub.TopicName),
		)
	}
	hubCfg := analytics.Config{
		BufferSize:     i.cfg.Analytics.BufferSize,
		MaxBatchEvents: i.cfg.Analytics.MaxBatchEvents,
		MaxBatchWait:   i.cfg.AnalyticsBatchWait(),
		Logger:         i.logger.Named("analytics_hub"),
	}
	i.logger.Info("analytics hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Int("sinks", len(sinkList)),
	)
	return analytics.NewHub(hubCfg, sinkList...), nil
}

// Close releases every client that was opened.
func (i *Infra) Close() {
	if i.productStore != nil {
		i.productStore.Close()
	}
	if i.pubsubClient != nil {
		if err := i.pubsubClient.Close(); err != nil {
			i.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if i.gcsClient != nil {
		if err := i.gcsClient.Close(); err != nil {
			i.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
}
