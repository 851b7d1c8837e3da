package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sqvec/sqvec/blobstore"
)

// LatestPointer is the reserved blob name that resolves to the most
// recently committed snapshot. Reads and writes of this name go through
// DynamoDB instead of S3.
const LatestPointer = "LATEST"

// ErrConcurrentCommit is returned when another writer committed a new
// snapshot version between the read and the conditional write.
var ErrConcurrentCommit = errors.New("concurrent snapshot commit detected")

// DDBClient is the subset of the DynamoDB API used by CommitStore.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Compile time check to ensure CommitStore satisfies the BlobStore interface.
var _ blobstore.BlobStore = (*CommitStore)(nil)

// CommitStore layers an atomic latest-snapshot pointer over a blob
// store. Snapshot data lives in the underlying store; the pointer is a
// monotonically versioned row in DynamoDB updated with a conditional
// write, which gives multiple writers compare-and-swap semantics that
// S3 alone lacks.
//
// Table schema:
//   - Partition key: store_uri (string), e.g. "s3://bucket/prefix"
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name sqvec-commits \
//	  --attribute-definitions AttributeName=store_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=store_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	blobs    blobstore.BlobStore
	ddb      DDBClient
	table    string
	storeURI string
}

// NewCommitStore wraps blobs with a DynamoDB commit log. storeURI is
// the partition key that namespaces this store's versions.
func NewCommitStore(blobs blobstore.BlobStore, ddb DDBClient, table, storeURI string) *CommitStore {
	return &CommitStore{
		blobs:    blobs,
		ddb:      ddb,
		table:    table,
		storeURI: storeURI,
	}
}

// Open opens a blob for reading. Opening LatestPointer resolves the
// current snapshot name from DynamoDB.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == LatestPointer {
		version, snapshot, err := s.latest(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return &pointerBlob{content: []byte(snapshot)}, nil
	}
	return s.blobs.Open(ctx, name)
}

// Put writes a blob. Writing LatestPointer commits a new version with a
// conditional write and returns ErrConcurrentCommit if it loses a race.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == LatestPointer {
		return s.commit(ctx, string(data))
	}
	return s.blobs.Put(ctx, name, data)
}

// Create creates a writable blob in the underlying store.
func (s *CommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return s.blobs.Create(ctx, name)
}

// Delete removes a blob from the underlying store.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	return s.blobs.Delete(ctx, name)
}

// List lists blobs in the underlying store.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.blobs.List(ctx, prefix)
}

// latest returns the highest committed version and its snapshot name.
// Version 0 means nothing has been committed yet.
func (s *CommitStore) latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("store_uri = :uri"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":uri": &ddbtypes.AttributeValueMemberS{Value: s.storeURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit log: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("commit log row has no version attribute")
	}
	snapshotAttr, ok := item["snapshot"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("commit log row has no snapshot attribute")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse commit version: %w", err)
	}

	return version, snapshotAttr.Value, nil
}

func (s *CommitStore) commit(ctx context.Context, snapshot string) error {
	current, _, err := s.latest(ctx)
	if err != nil {
		return err
	}

	next := current + 1

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]ddbtypes.AttributeValue{
			"store_uri": &ddbtypes.AttributeValueMemberS{Value: s.storeURI},
			"version":   &ddbtypes.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"snapshot":  &ddbtypes.AttributeValueMemberS{Value: snapshot},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentCommit
		}
		return fmt.Errorf("commit snapshot version: %w", err)
	}

	return nil
}

// pointerBlob serves the resolved pointer content from memory.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *pointerBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *pointerBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= int64(len(b.content)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := off + length
	if end > int64(len(b.content)) {
		end = int64(len(b.content))
	}
	return io.NopCloser(bytes.NewReader(b.content[off:end])), nil
}

func (b *pointerBlob) Close() error {
	return nil
}
