package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client writes aggregate points through the library's batching,
// non-blocking write API.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	layout   Layout

	open    atomic.Bool
	onError atomic.Pointer[func(error)]
}

// target is where points go once v1 settings are folded into v2 terms.
type target struct {
	token  string
	org    string
	bucket string
}

// resolveTarget picks the write destination. When database is set the
// server is treated as InfluxDB 1.8+, whose v2 write endpoint takes
// "username:password" as the token and the database as the bucket, with no
// organisation.
func resolveTarget(cfg config.InfluxDBConfig) target {
	if cfg.Database == "" {
		return target{token: cfg.Token, org: cfg.Org, bucket: cfg.Bucket}
	}
	t := target{token: cfg.Token, bucket: cfg.Database}
	if cfg.Username != "" {
		t.token = cfg.Username + ":" + cfg.Password
	}
	return t
}

// writeOptions maps the batching settings onto library options. Zero or
// negative values take the defaults; retry_buffer_limit <= 0 keeps the
// library's own limit.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize) // #nosec G115 -- positive
	}
	interval := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		interval = time.Duration(cfg.FlushInterval) * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(interval.Milliseconds())) // #nosec G115 -- positive
	if cfg.RetryBufferLimit > 0 {
		opts.SetRetryBufferLimit(uint(cfg.RetryBufferLimit)) // #nosec G115 -- positive
	}
	return opts
}

// Connect creates the client and pings the server before handing it out.
//
// Parameters:
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Client: Client ready for WriteReading
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the cause
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	dest := resolveTarget(cfg)
	client := influxdb2.NewClientWithOptions(cfg.URL, dest.token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(dest.org, dest.bucket),
		layout:   LayoutFrom(cfg),
	}
	c.open.Store(true)
	go c.forwardErrors()
	return c, nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("ping: %w", err)
	case !healthy:
		return errors.New("ping: server not healthy")
	}
	return nil
}

// forwardErrors hands asynchronous batch failures to the callback until
// Close shuts the write API and its error channel.
func (c *Client) forwardErrors() {
	for err := range c.writeAPI.Errors() {
		if cb := c.onError.Load(); cb != nil {
			(*cb)(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// SetOnError installs the callback for asynchronous write failures. The
// errors it receives wrap ErrWriteFailed. Pass nil to drop them.
func (c *Client) SetOnError(callback func(err error)) {
	if callback == nil {
		c.onError.Store(nil)
		return
	}
	c.onError.Store(&callback)
}

// Flush blocks until every queued point has been sent. After Close it
// does nothing.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}

// HealthCheck pings the server, bounded by 5s or ctx, whichever ends first.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether Close has not been called yet. It does not
// contact the server; HealthCheck does.
func (c *Client) IsConnected() bool {
	return c != nil && c.open.Load()
}

// Close flushes queued points and releases the client. It is safe to call
// on a nil Client and more than once.
func (c *Client) Close() error {
	if c == nil || !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
