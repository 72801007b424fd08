package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"blogify/internal/logger"
	"blogify/internal/models"
	"blogify/internal/storage"

	"go.uber.org/zap"
)

const DefaultRole = "reader"

// UserRepository хранит пользователей в UserStorage. Аккаунты меняются редко,
// поэтому запись синхронная, без фонового сброса.
type UserRepository struct {
	storage *storage.UserStorage
	clock   Clock
	latency time.Duration

	mu     sync.Mutex
	users  []models.User
	lastID int64
}

func NewUserRepository(ctx context.Context, us *storage.UserStorage, opts Options) *UserRepository {
	r := &UserRepository{
		storage: us,
		clock:   opts.clock(),
		latency: opts.Latency,
	}
	r.users = us.Load(ctx)
	for _, u := range r.users {
		if n, err := strconv.ParseInt(u.ID, 10, 64); err == nil && n > r.lastID {
			r.lastID = n
		}
	}
	logger.WithCtx(ctx).Info("Репозиторий: пользователи загружены", zap.Int("count", len(r.users)))
	return r
}

// Create сохраняет нового пользователя. Email сравнивается без учёта регистра.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	logger.WithCtx(ctx).Info("Создание пользователя (repo)", zap.String("email", user.Email))
	if err := sleepCtx(ctx, r.latency); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findByEmailLocked(user.Email) != nil {
		return fmt.Errorf("email %s: %w", user.Email, ErrDuplicateAccount)
	}

	now := r.clock.Now().UTC()
	ms := now.UnixMilli()
	if ms <= r.lastID {
		ms = r.lastID + 1
	}
	r.lastID = ms

	user.ID = strconv.FormatInt(ms, 10)
	user.Email = strings.TrimSpace(user.Email)
	if user.Role == "" {
		user.Role = DefaultRole
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	r.users = append(r.users, *user)
	r.storage.Save(ctx, r.users)
	return nil
}

// GetByEmail возвращает nil, nil, если пользователя нет.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	logger.WithCtx(ctx).Debug("Получение пользователя по email (repo)", zap.String("email", email))
	if err := sleepCtx(ctx, r.latency); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByEmailLocked(email), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if err := sleepCtx(ctx, r.latency); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].ID == id {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, nil
}

// GetByIDs находит сразу несколько пользователей за одну задержку.
// Отсутствующих id в результате нет.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	if err := sleepCtx(ctx, r.latency); err != nil {
		return nil, err
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*models.User, len(want))
	for i := range r.users {
		if _, ok := want[r.users[i].ID]; ok {
			u := r.users[i]
			out[u.ID] = &u
		}
	}
	return out, nil
}

// Reset перечитывает пользователей из начальных данных.
func (r *UserRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.storage.Reset(ctx); err != nil {
		return fmt.Errorf("resetting users: %w", err)
	}
	r.users = r.storage.Load(ctx)
	return nil
}

func (r *UserRepository) findByEmailLocked(email string) *models.User {
	email = strings.TrimSpace(email)
	for i := range r.users {
		if strings.EqualFold(r.users[i].Email, email) {
			u := r.users[i]
			return &u
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
