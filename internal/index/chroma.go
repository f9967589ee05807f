package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type ChromaConfig struct {
	BaseURL     string
	SourceLabel string
	Description string
	Timeout     time.Duration
}

// ChromaGateway talks to a Chroma server over its v1 REST API. Vectors are
// computed by the embedder, as a Chroma client embedding function would.
type ChromaGateway struct {
	baseURL     string
	sourceLabel string
	description string
	embedder    Embedder
	client      *http.Client
}

func NewChromaGateway(cfg ChromaConfig, embedder Embedder) *ChromaGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromaGateway{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/") + "/api/v1",
		sourceLabel: cfg.SourceLabel,
		description: cfg.Description,
		embedder:    embedder,
		client:      &http.Client{Timeout: timeout},
	}
}

type chromaCollection struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

func (g *ChromaGateway) Heartbeat(ctx context.Context) error {
	if err := g.do(ctx, http.MethodGet, "/heartbeat", nil, nil); err != nil {
		return unavailable("heartbeat", err)
	}
	return nil
}

func (g *ChromaGateway) EnsureCollection(ctx context.Context, name string) (*Collection, error) {
	body := map[string]any{
		"name":          name,
		"metadata":      map[string]string{"description": g.description},
		"get_or_create": true,
	}
	var coll chromaCollection
	if err := g.do(ctx, http.MethodPost, "/collections", body, &coll); err != nil {
		return nil, unavailable("ensure collection", err)
	}
	return &Collection{ID: coll.ID, Name: coll.Name, Description: coll.Metadata["description"]}, nil
}

func (g *ChromaGateway) Upsert(ctx context.Context, collection string, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	id, err := g.lookup(ctx, collection)
	if err != nil {
		return unavailable("upsert", err)
	}
	embeddings, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return unavailable("embed passages", err)
	}

	entries := Entries(texts, g.sourceLabel)
	ids := make([]string, len(entries))
	metadatas := make([]map[string]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		metadatas[i] = map[string]string{"source": e.Source}
	}
	body := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  texts,
		"metadatas":  metadatas,
	}
	if err := g.do(ctx, http.MethodPost, "/collections/"+id+"/upsert", body, nil); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

func (g *ChromaGateway) Query(ctx context.Context, collection, text string, k int) ([]Passage, error) {
	if k <= 0 {
		k = 3
	}
	id, err := g.lookup(ctx, collection)
	if err != nil {
		return nil, unavailable("query", err)
	}
	vectors, err := g.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, unavailable("embed query", err)
	}

	body := map[string]any{
		"query_embeddings": vectors,
		"n_results":        k,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	var resp struct {
		IDs       [][]string            `json:"ids"`
		Documents [][]string            `json:"documents"`
		Metadatas [][]map[string]string `json:"metadatas"`
		Distances [][]float32           `json:"distances"`
	}
	if err := g.do(ctx, http.MethodPost, "/collections/"+id+"/query", body, &resp); err != nil {
		return nil, unavailable("query", err)
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	passages := make([]Passage, len(resp.IDs[0]))
	for i, pid := range resp.IDs[0] {
		p := Passage{ID: pid}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			p.Text = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			p.Source = resp.Metadatas[0][i]["source"]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			p.Score = 1 / (1 + resp.Distances[0][i])
		}
		passages[i] = p
	}
	return passages, nil
}

func (g *ChromaGateway) Count(ctx context.Context, collection string) (int, error) {
	id, err := g.lookup(ctx, collection)
	if err != nil {
		return 0, unavailable("count", err)
	}
	var n int
	if err := g.do(ctx, http.MethodGet, "/collections/"+id+"/count", nil, &n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

func (g *ChromaGateway) DeleteCollection(ctx context.Context, collection string) error {
	if err := g.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(collection), nil, nil); err != nil {
		return unavailable("delete collection", err)
	}
	return nil
}

// lookup resolves a collection name to the id the data endpoints require.
func (g *ChromaGateway) lookup(ctx context.Context, name string) (string, error) {
	var coll chromaCollection
	if err := g.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), nil, &coll); err != nil {
		return "", err
	}
	if coll.ID == "" {
		return "", fmt.Errorf("collection %q has no id", name)
	}
	return url.PathEscape(coll.ID), nil
}

func (g *ChromaGateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal chroma request failed: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build chroma request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("chroma %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chroma %s %s status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode chroma response failed: %w", err)
		}
	}
	return nil
}

var _ Gateway = (*ChromaGateway)(nil)
