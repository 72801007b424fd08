package storage

import (
	"context"
	"encoding/json"

	"blogify/internal/logger"
	"blogify/internal/models"

	"go.uber.org/zap"
)

// PostStorage: адаптер коллекции постов. Ошибки хранилища не возвращаются
// наружу: чтение деградирует до пустого списка, неудачная запись только логируется.
type PostStorage struct {
	blob
}

func NewPostStorage(kv KV) *PostStorage {
	return &PostStorage{blob{kv: kv, key: PostsKey, seed: seedPosts}}
}

// WithSeed подменяет начальные данные (для тестов и демо-стендов).
func (s *PostStorage) WithSeed(seed []byte) *PostStorage {
	s.seed = seed
	return s
}

func (s *PostStorage) Load(ctx context.Context) []models.RawPost {
	raw := s.read(ctx)
	if raw == nil {
		return []models.RawPost{}
	}

	var posts []models.RawPost
	if err := json.Unmarshal(raw, &posts); err != nil {
		logger.WithCtx(ctx).Error("Повреждённые данные постов в хранилище",
			zap.Int("bytes", len(raw)),
			zap.Error(err),
		)
		return []models.RawPost{}
	}
	if posts == nil {
		posts = []models.RawPost{}
	}
	return posts
}

func (s *PostStorage) Save(ctx context.Context, posts []models.Post) {
	raw, err := json.Marshal(posts)
	if err != nil {
		logger.WithCtx(ctx).Error("Не удалось сериализовать посты", zap.Error(err))
		return
	}
	s.write(ctx, raw)
}

// Reset очищает ключ и заново заполняет его начальными данными.
func (s *PostStorage) Reset(ctx context.Context) error {
	return s.reset(ctx)
}
