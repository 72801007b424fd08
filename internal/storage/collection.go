package storage

import (
	"context"
	"fmt"

	"blogify/internal/logger"

	"go.uber.org/zap"
)

// blob содержит общую часть коллекций: ключ, сид и первичную инициализацию.
type blob struct {
	kv          KV
	key         string
	seed        []byte
	prepareSeed func([]byte) ([]byte, error)
}

func (b *blob) ensureInitialized(ctx context.Context) error {
	raw, ok, err := b.kv.Get(ctx, b.key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ok && len(raw) > 0 {
		return nil
	}
	return b.writeSeed(ctx)
}

func (b *blob) writeSeed(ctx context.Context) error {
	seed := b.seed
	if b.prepareSeed != nil {
		prepared, err := b.prepareSeed(seed)
		if err != nil {
			return fmt.Errorf("preparing %s seed: %w", b.key, err)
		}
		seed = prepared
	}
	if err := b.kv.Set(ctx, b.key, seed); err != nil {
		return fmt.Errorf("seeding %s: %w", b.key, err)
	}
	logger.WithCtx(ctx).Info("Хранилище: коллекция заполнена начальными данными", zap.String("key", b.key))
	return nil
}

// read возвращает сырой блоб или nil, если читать нечего или хранилище недоступно.
func (b *blob) read(ctx context.Context) []byte {
	log := logger.WithCtx(ctx).With(zap.String("key", b.key))

	if err := b.ensureInitialized(ctx); err != nil {
		log.Warn("Хранилище недоступно при инициализации", zap.Error(err))
		return nil
	}

	raw, ok, err := b.kv.Get(ctx, b.key)
	if err != nil {
		log.Warn("Хранилище недоступно при чтении", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return raw
}

func (b *blob) write(ctx context.Context, raw []byte) {
	if err := b.kv.Set(ctx, b.key, raw); err != nil {
		logger.WithCtx(ctx).Error("Не удалось сохранить коллекцию",
			zap.String("key", b.key),
			zap.Int("bytes", len(raw)),
			zap.Error(err),
		)
	}
}

func (b *blob) reset(ctx context.Context) error {
	if err := b.kv.Delete(ctx, b.key); err != nil {
		return fmt.Errorf("clearing %s: %w", b.key, err)
	}
	return b.writeSeed(ctx)
}
