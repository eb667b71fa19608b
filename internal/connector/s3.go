package connector

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sqlflow/sqlflow"
	"github.com/sqlflow/sqlflow/internal/executor"
)

// S3Connector reads and writes CSV-shaped objects in an S3-compatible
// bucket. The client is built lazily from the default AWS credential chain
// so Configure stays a pure validation step (spec §6.2).
type S3Connector struct {
	mu     sync.Mutex
	bucket string
	prefix string
	region string

	client *s3.Client

	lastCursor    string
	lastCursorSet bool
}

// NewS3Connector returns an unconfigured S3Connector.
func NewS3Connector() *S3Connector {
	return &S3Connector{}
}

// Configure requires "bucket"; "prefix" and "region" are optional.
func (c *S3Connector) Configure(params map[string]any) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, _ := params["bucket"].(string)
	if bucket == "" {
		return []string{"s3 connector: missing required param \"bucket\""}
	}

	c.bucket = bucket
	c.prefix, _ = params["prefix"].(string)
	c.region, _ = params["region"].(string)

	return nil
}

// SupportsIncremental reports false: objects are read and overwritten
// wholesale, with no server-side predicate pushdown.
func (c *S3Connector) SupportsIncremental() bool { return false }

func (c *S3Connector) ensureClient(ctx context.Context) (*s3.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if c.region != "" {
		opts = append(opts, awsconfig.WithRegion(c.region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 connector: load aws config: %v", sqlflow.ErrConnector, err)
	}

	c.client = s3.NewFromConfig(cfg)

	return c.client, nil
}

func (c *S3Connector) key(objectName string) string {
	c.mu.Lock()
	prefix := c.prefix
	c.mu.Unlock()

	if prefix == "" {
		return objectName
	}

	return path.Join(prefix, objectName)
}

func (c *S3Connector) Read(ctx context.Context, objectName string) (executor.DataChunkIterator, error) {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	bucket := c.bucket
	c.mu.Unlock()

	key := c.key(objectName)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("%w: s3 connector: get %s/%s: %v", sqlflow.ErrConnector, bucket, key, err)
	}
	defer out.Body.Close()

	columns, rows, err := decodeCSV(out.Body)
	if err != nil {
		return nil, err
	}

	return newSingleChunkIterator(NewRowChunk(columns, rows)), nil
}

// ReadIncremental has no server-side predicate support; it performs a full
// read and filters client-side, matching the CSV connector's approach.
func (c *S3Connector) ReadIncremental(ctx context.Context, objectName, cursorField, cursorValue string, batchSize int) (executor.DataChunkIterator, error) {
	it, err := c.Read(ctx, objectName)
	if err != nil {
		return nil, err
	}

	chunk, _, err := it.Next(ctx)
	if err != nil || chunk == nil {
		return it, err
	}

	var (
		filtered  []map[string]any
		maxCursor string
		haveMax   bool
	)

	for _, row := range chunk.Rows() {
		v := fmt.Sprint(row[cursorField])
		if v <= cursorValue {
			continue
		}

		if !haveMax || v > maxCursor {
			maxCursor = v
			haveMax = true
		}

		filtered = append(filtered, row)
	}

	if haveMax {
		c.mu.Lock()
		c.lastCursor = maxCursor
		c.lastCursorSet = true
		c.mu.Unlock()
	}

	return newSingleChunkIterator(NewRowChunk(chunk.Columns(), filtered)), nil
}

func (c *S3Connector) GetCursorValue() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastCursor, c.lastCursorSet
}

// Write CSV-encodes data and uploads it as a single object.
func (c *S3Connector) Write(ctx context.Context, destination string, data executor.DataChunk, options map[string]any) error {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := writeCSV(&buf, data); err != nil {
		return err
	}

	c.mu.Lock()
	bucket := c.bucket
	c.mu.Unlock()

	key := c.key(destination)

	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(buf.Bytes()),
	}); err != nil {
		return fmt.Errorf("%w: s3 connector: put %s/%s: %v", sqlflow.ErrConnector, bucket, key, err)
	}

	return nil
}

// CopyFromFile uploads a local staged file directly, avoiding the decode/
// re-encode round trip Write performs.
func (c *S3Connector) CopyFromFile(ctx context.Context, localPath string, options map[string]any) error {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: s3 connector: open %s: %v", sqlflow.ErrConnector, localPath, err)
	}
	defer f.Close()

	c.mu.Lock()
	bucket := c.bucket
	c.mu.Unlock()

	dest, _ := options["key"].(string)
	if dest == "" {
		dest = path.Base(localPath)
	}

	key := c.key(dest)

	if _, err := client.PutObject(ctx, &s3.PutObjectInput{Bucket: &bucket, Key: &key, Body: f}); err != nil {
		return fmt.Errorf("%w: s3 connector: put %s/%s: %v", sqlflow.ErrConnector, bucket, key, err)
	}

	return nil
}

func decodeCSV(r io.Reader) ([]string, []map[string]any, error) {
	reader := csv.NewReader(r)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: s3 connector: decode csv body: %v", sqlflow.ErrConnector, err)
	}

	if len(records) == 0 {
		return nil, nil, nil
	}

	columns := records[0]

	rows := make([]map[string]any, 0, len(records)-1)

	for _, rec := range records[1:] {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}

		rows = append(rows, row)
	}

	return columns, rows, nil
}
