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

const defaultPageLimit = 20

type PostRepo interface {
	List(ctx context.Context, opts ListOptions) (Page, error)
	ListByUser(ctx context.Context, userID string, opts ListOptions) (Page, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	FindBySlug(ctx context.Context, slug string) (*models.Post, error)
	RecordView(ctx context.Context, id string) (*models.Post, error)
	GetBySlugOrRedirect(ctx context.Context, slug string) (*models.Post, error)
	Create(ctx context.Context, in CreateInput) (*models.Post, error)
	Update(ctx context.Context, id string, patch PostPatch) (*models.Post, error)
	Delete(ctx context.Context, id string) (string, error)
	Reset(ctx context.Context) error
}

type ListOptions struct {
	Query  string
	Limit  int
	Offset int
}

// Page: страница выдачи; Total считается по отфильтрованной коллекции до пагинации.
type Page struct {
	Items []models.Post
	Total int
}

type CreateInput struct {
	Title         string
	Content       string
	UserID        *string
	Tags          []string
	FeaturedImage string
}

// PostPatch: частичное обновление; nil-поля не меняются.
type PostPatch struct {
	Title         *string
	Content       *string
	Tags          *[]string
	FeaturedImage *string
	UserID        *string
}

// PostRepository держит всю коллекцию в памяти под одним мьютексом и
// сбрасывает её в хранилище целиком фоновой записью. Снимок пишется только
// из Flush, поэтому параллельные изменения не затирают друг друга.
type PostRepository struct {
	storage    *storage.PostStorage
	clock      Clock
	latency    time.Duration
	flushDelay time.Duration

	mu     sync.Mutex
	order  []string // новые первыми
	byID   map[string]*models.Post
	bySlug map[string]string
	lastID int64
	dirty  bool

	saveMu    sync.Mutex
	nudge     chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewPostRepository загружает коллекцию и запускает фоновую запись.
// Вызывающий обязан вызвать Close.
func NewPostRepository(ctx context.Context, ps *storage.PostStorage, opts Options) *PostRepository {
	r := &PostRepository{
		storage:    ps,
		clock:      opts.clock(),
		latency:    opts.Latency,
		flushDelay: opts.FlushDelay,
		nudge:      make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	raws := ps.Load(ctx)
	r.mu.Lock()
	r.indexLocked(ctx, raws)
	r.mu.Unlock()

	go r.flushLoop()
	return r
}

func (r *PostRepository) List(ctx context.Context, opts ListOptions) (Page, error) {
	if err := r.wait(ctx); err != nil {
		return Page{}, err
	}
	q := strings.ToLower(opts.Query)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pageLocked(opts, func(p *models.Post) bool {
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(p.Title), q) ||
			strings.Contains(strings.ToLower(p.Content), q)
	}), nil
}

func (r *PostRepository) ListByUser(ctx context.Context, userID string, opts ListOptions) (Page, error) {
	if err := r.wait(ctx); err != nil {
		return Page{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pageLocked(opts, func(p *models.Post) bool {
		return p.OwnedBy(userID)
	}), nil
}

// GetByID не считает просмотр. Если поста нет, возвращает nil, nil.
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id].Clone(), nil
}

// FindBySlug: чистое чтение по текущему slug или по одному из старых.
func (r *PostRepository) FindBySlug(ctx context.Context, slug string) (*models.Post, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findBySlugLocked(slug).Clone(), nil
}

// RecordView увеличивает счётчик просмотров на единицу.
func (r *PostRepository) RecordView(ctx context.Context, id string) (*models.Post, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	p.Views++
	r.markDirtyLocked()
	return p.Clone(), nil
}

// GetBySlugOrRedirect находит пост и тут же засчитывает просмотр. Это
// изменяющее чтение. Для чистого чтения есть FindBySlug.
func (r *PostRepository) GetBySlugOrRedirect(ctx context.Context, slug string) (*models.Post, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.findBySlugLocked(slug)
	if p == nil {
		return nil, nil
	}
	p.Views++
	r.markDirtyLocked()
	return p.Clone(), nil
}

func (r *PostRepository) Create(ctx context.Context, in CreateInput) (*models.Post, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	id := r.nextIDLocked(now)
	slug := AllocateSlug(in.Title, r.slugTakenLocked(""))

	image := in.FeaturedImage
	if image == "" {
		image = fmt.Sprintf(createdImagePattern, id)
	}

	p := Normalize(models.RawPost{
		ID:            id,
		Title:         in.Title,
		Content:       in.Content,
		UserID:        in.UserID,
		Tags:          in.Tags,
		Slug:          slug,
		FeaturedImage: image,
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}, now)

	r.order = append([]string{id}, r.order...)
	r.byID[id] = &p
	r.bySlug[slug] = id
	r.markDirtyLocked()

	logger.WithCtx(ctx).Debug("Репозиторий: пост создан", zap.String("id", id), zap.String("slug", slug))
	return p.Clone(), nil
}

// Update сливает patch с текущей записью. Если смена заголовка меняет slug,
// старый slug уходит в redirects, чтобы старые ссылки продолжали работать.
func (r *PostRepository) Update(ctx context.Context, id string, patch PostPatch) (*models.Post, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}

	now := r.clock.Now().UTC()
	raw := cur.Raw()
	raw.UpdatedAt = &now
	if patch.Title != nil {
		raw.Title = *patch.Title
	}
	if patch.Content != nil {
		raw.Content = *patch.Content
	}
	if patch.Tags != nil {
		raw.Tags = append([]string{}, (*patch.Tags)...)
	}
	if patch.FeaturedImage != nil {
		raw.FeaturedImage = *patch.FeaturedImage
	}
	if patch.UserID != nil {
		uid := *patch.UserID
		raw.UserID = &uid
	}

	if patch.Title != nil && *patch.Title != cur.Title {
		slug := AllocateSlug(*patch.Title, r.slugTakenLocked(id))
		if slug != cur.Slug {
			raw.Redirects = appendRedirect(raw.Redirects, cur.Slug, slug)
			raw.Slug = slug
		}
	}

	if raw.FeaturedImage == "" {
		raw.FeaturedImage = UpdatedPostImage
	}

	updated := Normalize(raw, now)
	if updated.Slug != cur.Slug {
		delete(r.bySlug, cur.Slug)
		r.bySlug[updated.Slug] = id
	}
	r.byID[id] = &updated
	r.markDirtyLocked()

	logger.WithCtx(ctx).Debug("Репозиторий: пост обновлён",
		zap.String("id", id),
		zap.String("slug", updated.Slug),
		zap.Int("redirects", len(updated.Redirects)),
	)
	return updated.Clone(), nil
}

// Delete идемпотентен: отсутствие поста не ошибка.
func (r *PostRepository) Delete(ctx context.Context, id string) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return id, nil
	}
	delete(r.byID, id)
	delete(r.bySlug, p.Slug)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.markDirtyLocked()
	return id, nil
}

// Reset выбрасывает все посты и заново заполняет хранилище сидом. Только для демо и тестов.
func (r *PostRepository) Reset(ctx context.Context) error {
	if err := r.wait(ctx); err != nil {
		return err
	}

	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	if err := r.storage.Reset(ctx); err != nil {
		return fmt.Errorf("resetting posts: %w", err)
	}
	raws := r.storage.Load(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = false
	r.indexLocked(ctx, raws)
	return nil
}

// Flush синхронно записывает текущий снимок, если есть несохранённые изменения.
func (r *PostRepository) Flush(ctx context.Context) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return
	}
	snapshot := make([]models.Post, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, *r.byID[id].Clone())
	}
	r.dirty = false
	r.mu.Unlock()

	r.storage.Save(ctx, snapshot)
}

// Close останавливает фоновую запись и сохраняет последние изменения.
func (r *PostRepository) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		<-r.stopped
		r.Flush(context.Background())
	})
	return nil
}

func (r *PostRepository) flushLoop() {
	defer close(r.stopped)
	for {
		select {
		case <-r.done:
			return
		case <-r.nudge:
		}

		if r.flushDelay > 0 {
			t := time.NewTimer(r.flushDelay)
			select {
			case <-r.done:
				t.Stop()
				return
			case <-t.C:
			}
		}
		r.Flush(context.Background())
	}
}

func (r *PostRepository) markDirtyLocked() {
	r.dirty = true
	select {
	case r.nudge <- struct{}{}:
	default:
	}
}

func (r *PostRepository) wait(ctx context.Context) error {
	return sleepCtx(ctx, r.latency)
}

// findBySlugLocked: живой slug важнее, затем redirects в порядке «новые первыми».
func (r *PostRepository) findBySlugLocked(slug string) *models.Post {
	if id, ok := r.bySlug[slug]; ok {
		return r.byID[id]
	}
	for _, id := range r.order {
		p := r.byID[id]
		for _, old := range p.Redirects {
			if old == slug {
				return p
			}
		}
	}
	return nil
}

// slugTakenLocked считает занятыми живые slug всех постов, кроме exceptID.
func (r *PostRepository) slugTakenLocked(exceptID string) func(string) bool {
	return func(slug string) bool {
		id, ok := r.bySlug[slug]
		return ok && id != exceptID
	}
}

func (r *PostRepository) pageLocked(opts ListOptions, match func(*models.Post) bool) Page {
	limit, offset := opts.Limit, opts.Offset
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	page := Page{Items: []models.Post{}}
	for _, id := range r.order {
		p := r.byID[id]
		if !match(p) {
			continue
		}
		if page.Total >= offset && page.Total-offset < limit {
			page.Items = append(page.Items, *p.Clone())
		}
		page.Total++
	}
	return page
}

// nextIDLocked: миллисекунды Unix, строго возрастающие в пределах репозитория.
func (r *PostRepository) nextIDLocked(now time.Time) string {
	ms := now.UnixMilli()
	if ms <= r.lastID {
		ms = r.lastID + 1
	}
	r.lastID = ms
	return strconv.FormatInt(ms, 10)
}

// indexLocked строит индекс заново. Записи без id, с повтором id или slug
// чинятся, чтобы slug оставался уникальным в любой момент.
func (r *PostRepository) indexLocked(ctx context.Context, raws []models.RawPost) {
	log := logger.WithCtx(ctx)
	now := r.clock.Now().UTC()

	r.order = make([]string, 0, len(raws))
	r.byID = make(map[string]*models.Post, len(raws))
	r.bySlug = make(map[string]string, len(raws))

	for _, raw := range raws {
		if n, err := strconv.ParseInt(raw.ID, 10, 64); err == nil && n > r.lastID {
			r.lastID = n
		}
		if n, err := strconv.ParseInt(raw.LegacyID, 10, 64); err == nil && n > r.lastID {
			r.lastID = n
		}
	}

	repaired := false
	posts := make([]*models.Post, 0, len(raws))
	for _, raw := range raws {
		p := Normalize(raw, now)
		if p.ID == "" {
			p.ID = r.nextIDLocked(now)
			log.Warn("Репозиторий: пост без id, назначен новый", zap.String("id", p.ID), zap.String("title", p.Title))
			repaired = true
		}
		if _, dup := r.byID[p.ID]; dup {
			log.Warn("Репозиторий: повтор id, запись пропущена", zap.String("id", p.ID))
			repaired = true
			continue
		}
		r.byID[p.ID] = &p
		r.order = append(r.order, p.ID)
		posts = append(posts, &p)
	}

	// живые slug занимаем в порядке коллекции; конфликтующие получают новый
	for _, p := range posts {
		if p.Slug == "" {
			continue
		}
		if _, taken := r.bySlug[p.Slug]; taken {
			old := p.Slug
			p.Slug = ""
			log.Warn("Репозиторий: повтор slug", zap.String("id", p.ID), zap.String("slug", old))
			continue
		}
		r.bySlug[p.Slug] = p.ID
	}
	for _, p := range posts {
		if p.Slug != "" && r.bySlug[p.Slug] == p.ID {
			continue
		}
		p.Slug = AllocateSlug(p.Title, r.slugTakenLocked(p.ID))
		r.bySlug[p.Slug] = p.ID
		repaired = true
	}

	if repaired {
		r.markDirtyLocked()
	}
	log.Info("Репозиторий: коллекция постов загружена", zap.Int("count", len(r.order)))
}

// appendRedirect добавляет old в историю без повторов и убирает из неё новый живой slug.
func appendRedirect(redirects []string, old, live string) []string {
	out := make([]string, 0, len(redirects)+1)
	for _, s := range redirects {
		if s != old && s != live {
			out = append(out, s)
		}
	}
	return append(out, old)
}
