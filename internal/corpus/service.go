package corpus

import (
	"context"

	"go.uber.org/zap"
)

type Rebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// Service is the corpus mutation entry point.
type Service struct {
	store  *Store
	loader Rebuilder
	log    *zap.Logger
}

func NewService(store *Store, loader Rebuilder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, loader: loader, log: log}
}

// UpdateDocument persists content under filename and reindexes the whole
// corpus. It returns the number of documents indexed.
func (s *Service) UpdateDocument(ctx context.Context, filename, content string) (int, error) {
	if err := s.store.Save(filename, content); err != nil {
		return 0, err
	}
	s.log.Info("document saved", zap.String("filename", filename), zap.Int("bytes", len(content)))

	n, err := s.loader.Rebuild(ctx)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Service) Reindex(ctx context.Context) (int, error) {
	return s.loader.Rebuild(ctx)
}
