package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	milvusindex "github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"google.golang.org/grpc"
)

const (
	fieldID        = "id"
	fieldEmbedding = "embedding"
	fieldContent   = "content"
	fieldSource    = "source"
)

type MilvusConfig struct {
	Dimension   int
	SourceLabel string
	Description string
}

// MilvusClient is the subset of *milvusclient.Client the gateway calls.
type MilvusClient interface {
	ListCollections(ctx context.Context, option milvusclient.ListCollectionOption, callOptions ...grpc.CallOption) ([]string, error)
	HasCollection(ctx context.Context, option milvusclient.HasCollectionOption, callOptions ...grpc.CallOption) (bool, error)
	CreateCollection(ctx context.Context, option milvusclient.CreateCollectionOption, callOptions ...grpc.CallOption) error
	CreateIndex(ctx context.Context, option milvusclient.CreateIndexOption, callOptions ...grpc.CallOption) (*milvusclient.CreateIndexTask, error)
	LoadCollection(ctx context.Context, option milvusclient.LoadCollectionOption, callOptions ...grpc.CallOption) (milvusclient.LoadTask, error)
	Insert(ctx context.Context, option milvusclient.InsertOption, callOptions ...grpc.CallOption) (milvusclient.InsertResult, error)
	Flush(ctx context.Context, option milvusclient.FlushOption, callOptions ...grpc.CallOption) (*milvusclient.FlushTask, error)
	Search(ctx context.Context, option milvusclient.SearchOption, callOptions ...grpc.CallOption) ([]milvusclient.ResultSet, error)
	GetCollectionStats(ctx context.Context, option milvusclient.GetCollectionOption) (map[string]string, error)
	DropCollection(ctx context.Context, option milvusclient.DropCollectionOption, callOptions ...grpc.CallOption) error
}

// MilvusGateway stores passages in a Milvus collection keyed by passage id.
type MilvusGateway struct {
	client   MilvusClient
	embedder Embedder
	cfg      MilvusConfig
}

func NewMilvusGateway(client MilvusClient, embedder Embedder, cfg MilvusConfig) *MilvusGateway {
	return &MilvusGateway{client: client, embedder: embedder, cfg: cfg}
}

func (g *MilvusGateway) Heartbeat(ctx context.Context) error {
	if _, err := g.client.ListCollections(ctx, milvusclient.NewListCollectionOption()); err != nil {
		return unavailable("heartbeat", err)
	}
	return nil
}

func (g *MilvusGateway) EnsureCollection(ctx context.Context, name string) (*Collection, error) {
	exists, err := g.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return nil, unavailable("ensure collection", err)
	}
	if !exists {
		if err := g.create(ctx, name); err != nil {
			return nil, unavailable("ensure collection", err)
		}
	}
	return &Collection{ID: name, Name: name, Description: g.cfg.Description}, nil
}

func (g *MilvusGateway) create(ctx context.Context, name string) error {
	schema := entity.NewSchema().
		WithName(name).
		WithDescription(g.cfg.Description).
		WithAutoID(false).
		WithField(entity.NewField().
			WithName(fieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(fieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(g.cfg.Dimension))).
		WithField(entity.NewField().
			WithName(fieldContent).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535)).
		WithField(entity.NewField().
			WithName(fieldSource).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(255))

	if err := g.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
		return fmt.Errorf("create collection failed: %w", err)
	}

	idx := milvusindex.NewIvfFlatIndex(entity.COSINE, 128)
	task, err := g.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, fieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("create index failed: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("wait for index failed: %w", err)
	}
	return g.load(ctx, name)
}

func (g *MilvusGateway) load(ctx context.Context, name string) error {
	task, err := g.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("load collection failed: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("wait for collection load failed: %w", err)
	}
	return nil
}

func (g *MilvusGateway) Upsert(ctx context.Context, collection string, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	vectors, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return unavailable("embed passages", err)
	}
	columns, err := passageColumns(Entries(texts, g.cfg.SourceLabel), vectors)
	if err != nil {
		return unavailable("upsert", err)
	}

	// collections are recreated before each load, so row_count stays exact
	if _, err := g.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection, columns...)); err != nil {
		return unavailable("insert", err)
	}
	flush, err := g.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return unavailable("flush", err)
	}
	if err := flush.Await(ctx); err != nil {
		return unavailable("flush", err)
	}
	return nil
}

func (g *MilvusGateway) Query(ctx context.Context, collection, text string, k int) ([]Passage, error) {
	if k <= 0 {
		k = 3
	}
	vectors, err := g.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, unavailable("embed query", err)
	}
	if len(vectors) == 0 {
		return nil, unavailable("embed query", errors.New("no query embedding returned"))
	}
	if err := g.load(ctx, collection); err != nil {
		return nil, unavailable("query", err)
	}

	results, err := g.client.Search(ctx, milvusclient.NewSearchOption(
		collection,
		k,
		[]entity.Vector{entity.FloatVector(vectors[0])},
	).WithANNSField(fieldEmbedding).
		WithSearchParam("nprobe", "16").
		WithOutputFields(fieldContent, fieldSource))
	if err != nil {
		return nil, unavailable("query", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rs := results[0]
	passages := make([]Passage, rs.ResultCount)
	if ids, ok := rs.IDs.(*column.ColumnVarChar); ok {
		for i := range passages {
			passages[i].ID = ids.Data()[i]
		}
	}
	for i := range passages {
		passages[i].Score = rs.Scores[i]
	}
	for _, field := range rs.Fields {
		col, ok := field.(*column.ColumnVarChar)
		if !ok {
			continue
		}
		for i := range passages {
			switch col.Name() {
			case fieldContent:
				passages[i].Text = col.Data()[i]
			case fieldSource:
				passages[i].Source = col.Data()[i]
			}
		}
	}
	return passages, nil
}

func (g *MilvusGateway) Count(ctx context.Context, collection string) (int, error) {
	stats, err := g.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
	if err != nil {
		return 0, unavailable("count", err)
	}
	raw, ok := stats["row_count"]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, unavailable("count", fmt.Errorf("parse row_count %q: %w", raw, err))
	}
	return n, nil
}

func (g *MilvusGateway) DeleteCollection(ctx context.Context, collection string) error {
	if err := g.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return unavailable("delete collection", err)
	}
	return nil
}

func passageColumns(entries []Passage, vectors [][]float32) ([]column.Column, error) {
	if len(entries) != len(vectors) {
		return nil, fmt.Errorf("passage and vector count mismatch: %d != %d", len(entries), len(vectors))
	}
	ids := make([]string, len(entries))
	contents := make([]string, len(entries))
	sources := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		contents[i] = e.Text
		sources[i] = e.Source
	}
	return []column.Column{
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnFloatVector(fieldEmbedding, len(vectors[0]), vectors),
		column.NewColumnVarChar(fieldContent, contents),
		column.NewColumnVarChar(fieldSource, sources),
	}, nil
}

var (
	_ Gateway      = (*MilvusGateway)(nil)
	_ MilvusClient = (*milvusclient.Client)(nil)
)
