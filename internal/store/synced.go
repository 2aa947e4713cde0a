package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/kittclouds/novelkit/pkg/apperr"
	"github.com/kittclouds/novelkit/pkg/kv"
)

// Snapshotter is a backend that can dump and reload its whole contents.
type Snapshotter interface {
	Backend
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) error
}

// SyncedStore mirrors a Snapshotter into one key of a kv.Store after every
// write and hydrates from that key when opened. The browser host keeps its
// in-memory SQLite database across page loads this way.
//
// Reads go straight to the inner backend. Writes and their flush are
// serialized so the stored snapshot never goes back in time.
type SyncedStore struct {
	Snapshotter
	kv  kv.Store
	key string
	mu  sync.Mutex
}

// NewSyncedStore loads the snapshot under key into inner, if there is one.
// The kv.Store is not closed with the backend.
func NewSyncedStore(ctx context.Context, inner Snapshotter, s kv.Store, key string) (*SyncedStore, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, apperr.BackendUnavailable(inner.Name(), fmt.Errorf("read snapshot %s: %w", key, err))
	}
	if ok {
		if err := inner.Import(ctx, data); err != nil {
			return nil, apperr.BackendUnavailable(inner.Name(), fmt.Errorf("load snapshot %s: %w", key, err))
		}
	}
	return &SyncedStore{Snapshotter: inner, kv: s, key: key}, nil
}

func (s *SyncedStore) write(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	return s.flush(ctx)
}

// flush writes the current snapshot. Caller holds mu.
func (s *SyncedStore) flush(ctx context.Context) error {
	data, err := s.Snapshotter.Export(ctx)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return apperr.TransactionFailed("flush "+s.key, err)
	}
	return nil
}

// Flush writes the current snapshot even when nothing changed.
func (s *SyncedStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush(ctx)
}

func (s *SyncedStore) Import(ctx context.Context, data []byte) error {
	return s.write(ctx, func() error { return s.Snapshotter.Import(ctx, data) })
}

func (s *SyncedStore) SaveNovels(ctx context.Context, novels []Novel) error {
	return s.write(ctx, func() error { return s.Snapshotter.SaveNovels(ctx, novels) })
}

func (s *SyncedStore) PutNovel(ctx context.Context, n Novel) error {
	return s.write(ctx, func() error { return s.Snapshotter.PutNovel(ctx, n) })
}

func (s *SyncedStore) UpdateNovel(ctx context.Context, id string, apply func(*Novel)) (Novel, error) {
	var out Novel
	err := s.write(ctx, func() (err error) {
		out, err = s.Snapshotter.UpdateNovel(ctx, id, apply)
		return err
	})
	return out, err
}

func (s *SyncedStore) DeleteNovel(ctx context.Context, id string) error {
	return s.write(ctx, func() error { return s.Snapshotter.DeleteNovel(ctx, id) })
}

func (s *SyncedStore) PutCharacter(ctx context.Context, c Character) error {
	return s.write(ctx, func() error { return s.Snapshotter.PutCharacter(ctx, c) })
}

func (s *SyncedStore) UpdateCharacter(ctx context.Context, id string, apply func(*Character)) (Character, error) {
	var out Character
	err := s.write(ctx, func() (err error) {
		out, err = s.Snapshotter.UpdateCharacter(ctx, id, apply)
		return err
	})
	return out, err
}

func (s *SyncedStore) DeleteCharacter(ctx context.Context, id string) error {
	return s.write(ctx, func() error { return s.Snapshotter.DeleteCharacter(ctx, id) })
}

func (s *SyncedStore) SaveChapters(ctx context.Context, chapters []Chapter) error {
	return s.write(ctx, func() error { return s.Snapshotter.SaveChapters(ctx, chapters) })
}

func (s *SyncedStore) SetChapterOrders(ctx context.Context, orders map[string]int) error {
	return s.write(ctx, func() error { return s.Snapshotter.SetChapterOrders(ctx, orders) })
}

func (s *SyncedStore) UpdateChapter(ctx context.Context, id string, apply func(*Chapter)) (Chapter, error) {
	var out Chapter
	err := s.write(ctx, func() (err error) {
		out, err = s.Snapshotter.UpdateChapter(ctx, id, apply)
		return err
	})
	return out, err
}

func (s *SyncedStore) DeleteChapter(ctx context.Context, id string) error {
	return s.write(ctx, func() error { return s.Snapshotter.DeleteChapter(ctx, id) })
}

func (s *SyncedStore) PutPlot(ctx context.Context, p Plot) error {
	return s.write(ctx, func() error { return s.Snapshotter.PutPlot(ctx, p) })
}

func (s *SyncedStore) UpdatePlot(ctx context.Context, id string, apply func(*Plot)) (Plot, error) {
	var out Plot
	err := s.write(ctx, func() (err error) {
		out, err = s.Snapshotter.UpdatePlot(ctx, id, apply)
		return err
	})
	return out, err
}

func (s *SyncedStore) DeletePlot(ctx context.Context, id string) error {
	return s.write(ctx, func() error { return s.Snapshotter.DeletePlot(ctx, id) })
}

func (s *SyncedStore) Replace(ctx context.Context, g Graph) error {
	return s.write(ctx, func() error { return s.Snapshotter.Replace(ctx, g) })
}

var (
	_ Snapshotter = (*SQLiteStore)(nil)
	_ Snapshotter = (*SyncedStore)(nil)
)
