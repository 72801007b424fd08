package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"blogify/internal/logger"
	"blogify/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const seedBcryptCost = 10

// UserStorage: адаптер коллекции пользователей, тот же контракт, что и у постов.
type UserStorage struct {
	blob
}

func NewUserStorage(kv KV) *UserStorage {
	return &UserStorage{blob{kv: kv, key: UsersKey, seed: seedUsers, prepareSeed: hashSeedPasswords}}
}

func (s *UserStorage) WithSeed(seed []byte) *UserStorage {
	s.seed = seed
	return s
}

func (s *UserStorage) Load(ctx context.Context) []models.User {
	raw := s.read(ctx)
	if raw == nil {
		return []models.User{}
	}

	var users []models.User
	if err := json.Unmarshal(raw, &users); err != nil {
		logger.WithCtx(ctx).Error("Повреждённые данные пользователей в хранилище", zap.Error(err))
		return []models.User{}
	}
	if users == nil {
		users = []models.User{}
	}
	return users
}

func (s *UserStorage) Save(ctx context.Context, users []models.User) {
	raw, err := json.Marshal(users)
	if err != nil {
		logger.WithCtx(ctx).Error("Не удалось сериализовать пользователей", zap.Error(err))
		return
	}
	s.write(ctx, raw)
}

func (s *UserStorage) Reset(ctx context.Context) error {
	return s.reset(ctx)
}

// hashSeedPasswords хэширует открытые пароли из сида; готовые bcrypt-хэши не трогает.
func hashSeedPasswords(seed []byte) ([]byte, error) {
	var users []map[string]any
	if err := json.Unmarshal(seed, &users); err != nil {
		return nil, fmt.Errorf("decoding users seed: %w", err)
	}
	for _, u := range users {
		pw, _ := u["password"].(string)
		if pw == "" || strings.HasPrefix(pw, "$2") {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), seedBcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hashing seed password: %w", err)
		}
		u["password"] = string(hash)
	}
	return json.Marshal(users)
}
