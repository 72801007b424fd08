package postcache

import (
	"context"
	"sync"

	"blogify/internal/logger"
	"blogify/internal/models"

	"go.uber.org/zap"
)

const fetchPageSize = 100

// PostSource: сервис постов, которому Store делегирует запросы.
type PostSource interface {
	List(ctx context.Context, q string, limit, offset int) (models.PostPage, error)
	Create(ctx context.Context, actor models.Actor, req models.CreatePostRequest) (*models.PostView, error)
	Update(ctx context.Context, actor models.Actor, id string, req models.UpdatePostRequest) (*models.PostView, error)
	Delete(ctx context.Context, actor models.Actor, id string) (string, error)
}

// Snapshot: состояние кэша для отдачи клиенту.
type Snapshot struct {
	IDs      []string               `json:"ids"`
	Entities map[string]models.Post `json:"entities"`
	Status   Status                 `json:"status"`
	Error    string                 `json:"error,omitempty"`
}

// Store: клиентское состояние постов. Каждое действие проходит
// pending → fulfilled|rejected и зеркалит результат в таблицу.
type Store struct {
	src PostSource

	mu    sync.RWMutex
	table *Table
}

func NewStore(src PostSource) *Store {
	return &Store{src: src, table: NewTable()}
}

// FetchPosts загружает всю ленту постранично и заменяет таблицу.
func (s *Store) FetchPosts(ctx context.Context) ([]models.Post, error) {
	s.pending()

	var all []models.Post
	for offset := 0; ; offset += fetchPageSize {
		page, err := s.src.List(ctx, "", fetchPageSize, offset)
		if err != nil {
			s.rejected(ctx, "fetchPosts", err)
			return nil, err
		}
		for _, d := range page.Documents {
			all = append(all, d.Post)
		}
		if len(page.Documents) < fetchPageSize || len(all) >= page.Total {
			break
		}
	}

	s.mu.Lock()
	s.table.SetAll(all)
	s.table.Status = StatusSucceeded
	s.table.Error = ""
	s.mu.Unlock()
	return all, nil
}

func (s *Store) AddPost(ctx context.Context, actor models.Actor, req models.CreatePostRequest) (*models.PostView, error) {
	s.pending()
	v, err := s.src.Create(ctx, actor, req)
	if err != nil {
		s.rejected(ctx, "addPost", err)
		return nil, err
	}
	s.fulfilled(func(t *Table) { t.AddOne(v.Post) })
	return v, nil
}

func (s *Store) UpdatePost(ctx context.Context, actor models.Actor, id string, req models.UpdatePostRequest) (*models.PostView, error) {
	s.pending()
	v, err := s.src.Update(ctx, actor, id, req)
	if err != nil {
		s.rejected(ctx, "updatePost", err)
		return nil, err
	}
	s.fulfilled(func(t *Table) { t.UpsertOne(v.Post) })
	return v, nil
}

func (s *Store) DeletePost(ctx context.Context, actor models.Actor, id string) (string, error) {
	s.pending()
	deleted, err := s.src.Delete(ctx, actor, id)
	if err != nil {
		s.rejected(ctx, "deletePost", err)
		return "", err
	}
	s.fulfilled(func(t *Table) { t.RemoveOne(deleted) })
	return deleted, nil
}

func (s *Store) All() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.All()
}

func (s *Store) ByID(id string) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.ByID(id)
}

func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.IDs()
}

func (s *Store) Status() (Status, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Status, s.table.Error
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entities := make(map[string]models.Post, len(s.table.entities))
	for id, p := range s.table.entities {
		entities[id] = *p.Clone()
	}
	return Snapshot{
		IDs:      s.table.IDs(),
		Entities: entities,
		Status:   s.table.Status,
		Error:    s.table.Error,
	}
}

func (s *Store) pending() {
	s.mu.Lock()
	s.table.Status = StatusLoading
	s.mu.Unlock()
}

func (s *Store) fulfilled(apply func(*Table)) {
	s.mu.Lock()
	apply(s.table)
	s.table.Status = StatusSucceeded
	s.table.Error = ""
	s.mu.Unlock()
}

func (s *Store) rejected(ctx context.Context, action string, err error) {
	logger.WithCtx(ctx).Warn("Кэш постов: действие отклонено", zap.String("action", action), zap.Error(err))
	s.mu.Lock()
	s.table.Status = StatusFailed
	s.table.Error = err.Error()
	s.mu.Unlock()
}
