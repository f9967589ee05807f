package index

import (
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func TestPassageColumns(t *testing.T) {
	entries := Entries([]string{"first passage", "second passage"}, "flagstone_documentation")
	vectors := [][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}}

	columns, err := passageColumns(entries, vectors)
	require.NoError(t, err)
	require.Len(t, columns, 4)

	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name()
		assert.Equal(t, 2, col.Len())
	}
	assert.Equal(t, []string{fieldID, fieldEmbedding, fieldContent, fieldSource}, names)
}

func TestPassageColumnsCountMismatch(t *testing.T) {
	_, err := passageColumns(Entries([]string{"a", "b"}, "s"), [][]float32{{1}})
	assert.Error(t, err)
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1}
	}
	return vectors, nil
}

// fakeMilvus records write calls. Methods it does not override panic through
// the nil embedded interface.
type fakeMilvus struct {
	MilvusClient
	inserts  int
	flushErr error
	stats    map[string]string
}

func (f *fakeMilvus) Insert(context.Context, milvusclient.InsertOption, ...grpc.CallOption) (milvusclient.InsertResult, error) {
	f.inserts++
	return milvusclient.InsertResult{InsertCount: 2}, nil
}

func (f *fakeMilvus) Flush(context.Context, milvusclient.FlushOption, ...grpc.CallOption) (*milvusclient.FlushTask, error) {
	return nil, f.flushErr
}

func (f *fakeMilvus) GetCollectionStats(context.Context, milvusclient.GetCollectionOption) (map[string]string, error) {
	return f.stats, nil
}

func TestMilvusUpsertInsertsThenFlushes(t *testing.T) {
	client := &fakeMilvus{flushErr: errors.New("flush refused")}
	gw := NewMilvusGateway(client, fakeEmbedder{}, MilvusConfig{Dimension: 2, SourceLabel: "flagstone_documentation"})

	err := gw.Upsert(context.Background(), "flagstone_docs", []string{"a", "b"})
	assert.Equal(t, 1, client.inserts)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "flush")
}

func TestMilvusUpsertEmptyIsNoop(t *testing.T) {
	client := &fakeMilvus{}
	gw := NewMilvusGateway(client, fakeEmbedder{}, MilvusConfig{Dimension: 2})

	require.NoError(t, gw.Upsert(context.Background(), "flagstone_docs", nil))
	assert.Zero(t, client.inserts)
}

func TestMilvusCount(t *testing.T) {
	tests := []struct {
		name    string
		stats   map[string]string
		want    int
		wantErr bool
	}{
		{"row count", map[string]string{"row_count": "7"}, 7, false},
		{"missing key", map[string]string{}, 0, false},
		{"not a number", map[string]string{"row_count": "many"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := NewMilvusGateway(&fakeMilvus{stats: tt.stats}, fakeEmbedder{}, MilvusConfig{})
			n, err := gw.Count(context.Background(), "flagstone_docs")
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnavailable))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}
