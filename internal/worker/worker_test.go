package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flagstone-assistant/internal/model"
	"flagstone-assistant/internal/platform/rabbitmq"
)

type stubRepo struct {
	created []model.Exchange
	err     error
}

func (r *stubRepo) Create(_ context.Context, exchange *model.Exchange) error {
	if r.err != nil {
		return r.err
	}
	exchange.ID = uint(len(r.created) + 1)
	r.created = append(r.created, *exchange)
	return nil
}

type stubDirty struct{ cleared int }

func (d *stubDirty) ClearDirty(context.Context) error {
	d.cleared++
	return nil
}

type stubRebuilder struct {
	calls int
	err   error
}

func (r *stubRebuilder) Rebuild(context.Context) (int, error) {
	r.calls++
	return 4, r.err
}

func TestExchangePersistHandle(t *testing.T) {
	repo := &stubRepo{}
	dirty := &stubDirty{}
	w := NewExchangePersistWorker(nil, repo, dirty, "q", nil)

	body, err := json.Marshal(model.Exchange{ID: 99, Question: "q", Answer: "a", CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, w.Handle(context.Background(), body))

	require.Len(t, repo.created, 1)
	assert.Equal(t, uint(1), repo.created[0].ID)
	assert.Equal(t, "q", repo.created[0].Question)
	assert.Equal(t, 1, dirty.cleared)
}

func TestExchangePersistHandleErrors(t *testing.T) {
	repo := &stubRepo{}
	dirty := &stubDirty{}
	w := NewExchangePersistWorker(nil, repo, dirty, "q", nil)
	assert.Error(t, w.Handle(context.Background(), []byte("{broken")))

	repo.err = errors.New("db down")
	assert.EqualError(t, w.Handle(context.Background(), []byte(`{"question":"q"}`)), "db down")
	assert.Equal(t, 2, dirty.cleared, "dropped deliveries still release the marker")
}

func TestExchangePersistHandleWithoutCache(t *testing.T) {
	w := NewExchangePersistWorker(nil, &stubRepo{}, nil, "q", nil)
	assert.NoError(t, w.Handle(context.Background(), []byte(`{"question":"q","answer":"a"}`)))
}

func TestReindexHandle(t *testing.T) {
	rb := &stubRebuilder{}
	w := NewReindexWorker(nil, rb, "q", nil)

	body, err := json.Marshal(rabbitmq.ReindexRequest{Reason: "api", RequestedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, w.Handle(context.Background(), body))
	assert.Equal(t, 1, rb.calls)

	assert.Error(t, w.Handle(context.Background(), []byte("nope")))
	assert.Equal(t, 1, rb.calls)

	rb.err = errors.New("index down")
	assert.Error(t, w.Handle(context.Background(), body))
}
