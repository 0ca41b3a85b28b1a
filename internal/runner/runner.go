// Package runner orchestrates the query lifecycle: validate, resolve joins,
// compile, execute, map. The lifecycle is strictly linear; a failure at any
// stage short-circuits and no partial SQL is ever executed.
package runner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/metriq/pkg/catalog"
	"github.com/leapstack-labs/metriq/pkg/compiler"
	"github.com/leapstack-labs/metriq/pkg/displayfmt"
	"github.com/leapstack-labs/metriq/pkg/drill"
	"github.com/leapstack-labs/metriq/pkg/metricquery"
	"github.com/leapstack-labs/metriq/pkg/results"
	"github.com/leapstack-labs/metriq/pkg/types"
	"github.com/leapstack-labs/metriq/pkg/validate"
	"github.com/leapstack-labs/metriq/pkg/warehouse"
)

// CacheProbe lets an external caching collaborator report whether a result
// was served from cache. The engine never caches itself; it only passes the
// metadata through to the response.
type CacheProbe interface {
	Probe(ctx context.Context, q *metricquery.MetricQuery) (types.CacheMetadata, bool)
}

// Response is the engine's reply to a metric query.
type Response struct {
	MetricQuery   *metricquery.MetricQuery         `json:"metricQuery"`
	CacheMetadata types.CacheMetadata              `json:"cacheMetadata"`
	Rows          []results.Row                    `json:"rows"`
	Fields        map[string]types.FieldDescriptor `json:"fields"`

	// ColumnOrder preserves the compiled select order for renderers; the
	// wire shape keys rows and fields by id only.
	ColumnOrder []string `json:"-"`
}

// Options configures a Runner. All fields are optional.
type Options struct {
	Logger    *slog.Logger
	Formatter *displayfmt.Formatter
	Cache     CacheProbe

	// DefaultLimit applies to queries that set no limit. Zero means no
	// default is imposed.
	DefaultLimit int
}

// Runner executes metric queries against one warehouse client.
type Runner struct {
	client warehouse.Client
	opts   Options
	logger *slog.Logger
}

// New creates a runner. The client must already be connected.
func New(client warehouse.Client, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{client: client, opts: opts, logger: logger}
}

// Compile validates and compiles a query without executing it.
func (r *Runner) Compile(q *metricquery.MetricQuery, cat *catalog.Catalog) (*compiler.CompiledQuery, error) {
	if q.Limit == 0 && r.opts.DefaultLimit > 0 {
		q.Limit = r.opts.DefaultLimit
	}

	start := time.Now()
	validated, err := validate.Validate(q, cat)
	if err != nil {
		return nil, err
	}
	resolved, err := compiler.ResolveJoins(validated)
	if err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(resolved)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("query compiled",
		slog.String("explore", q.ExploreName),
		slog.Int("joins", len(resolved.Joins)),
		slog.Int("params", len(compiled.Params)),
		slog.Duration("elapsed", time.Since(start)))
	return compiled, nil
}

// Run executes a query end to end and materializes the mapped rows.
func (r *Runner) Run(ctx context.Context, q *metricquery.MetricQuery, cat *catalog.Catalog) (*Response, error) {
	compiled, err := r.Compile(q, cat)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		MetricQuery: q,
		Fields:      make(map[string]types.FieldDescriptor, len(compiled.Columns)),
	}
	for _, col := range compiled.Columns {
		resp.Fields[col.ID] = col.Descriptor
		resp.ColumnOrder = append(resp.ColumnOrder, col.ID)
	}
	if r.opts.Cache != nil {
		if meta, ok := r.opts.Cache.Probe(ctx, q); ok {
			resp.CacheMetadata = meta
		}
	}

	start := time.Now()
	stream, err := r.client.Execute(ctx, compiled.SQL, compiled.Params)
	if err != nil {
		return nil, err
	}
	mapper, err := results.NewMapper(compiled, stream, r.opts.Formatter)
	if err != nil {
		_ = stream.Close()
		return nil, err
	}

	// Mapping runs on its own goroutine so a cancelled context aborts the
	// stream promptly even while the consumer is busy.
	g, gctx := errgroup.WithContext(ctx)
	rowCh := make(chan results.Row, 64)

	g.Go(func() error {
		defer close(rowCh)
		defer func() { _ = mapper.Close() }()
		for mapper.Next() {
			select {
			case rowCh <- mapper.Row():
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return mapper.Err()
	})
	g.Go(func() error {
		for row := range rowCh {
			resp.Rows = append(resp.Rows, row)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("query executed",
		slog.String("explore", q.ExploreName),
		slog.Int("rows", len(resp.Rows)),
		slog.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// Drill derives and runs the underlying-data query for a drilled cell.
func (r *Runner) Drill(ctx context.Context, original *metricquery.MetricQuery, cat *catalog.Catalog, req *drill.Request) (*Response, error) {
	q, err := drill.Resolve(original, cat, req)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, q, cat)
}
