package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"blogify/internal/events"
	"blogify/internal/logger"
	"blogify/internal/models"
	"blogify/internal/repository"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const (
	UnknownAuthor = "Unknown Author"

	maxTitleRunes   = 255
	maxTags         = 10
	excerptRunes    = 160
	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
)

// AuthorLookup: всё, что сервису постов нужно от аккаунтов.
// Авторы страницы запрашиваются одним вызовом.
type AuthorLookup interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

type PostService struct {
	repo      repository.PostRepo
	users     AuthorLookup
	publisher events.Publisher
	policy    *bluemonday.Policy
	plain     *bluemonday.Policy
}

func NewPostService(repo repository.PostRepo, users AuthorLookup, publisher events.Publisher) *PostService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	p := bluemonday.UGCPolicy()
	p.AllowElements("img")
	p.AllowAttrs("src", "alt").OnElements("img")
	return &PostService{
		repo:      repo,
		users:     users,
		publisher: publisher,
		policy:    p,
		plain:     bluemonday.StrictPolicy(),
	}
}

func (s *PostService) List(ctx context.Context, q string, limit, offset int) (models.PostPage, error) {
	log := logger.WithCtx(ctx)
	log.Debug("Получение списка постов", zap.String("q", q), zap.Int("limit", limit), zap.Int("offset", offset))

	page, err := s.repo.List(ctx, repository.ListOptions{Query: strings.TrimSpace(q), Limit: clampLimit(limit), Offset: offset})
	if err != nil {
		log.Error("Ошибка получения списка постов (repo)", zap.Error(err))
		return models.PostPage{}, err
	}
	return s.page(ctx, page), nil
}

func (s *PostService) ListByUser(ctx context.Context, userID string, limit, offset int) (models.PostPage, error) {
	log := logger.WithCtx(ctx)
	log.Debug("Получение постов пользователя", zap.String("user_id", userID))

	page, err := s.repo.ListByUser(ctx, userID, repository.ListOptions{Limit: clampLimit(limit), Offset: offset})
	if err != nil {
		log.Error("Ошибка получения постов пользователя (repo)", zap.String("user_id", userID), zap.Error(err))
		return models.PostPage{}, err
	}
	return s.page(ctx, page), nil
}

func (s *PostService) GetByID(ctx context.Context, id string) (*models.PostView, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		logger.WithCtx(ctx).Error("Ошибка получения поста (repo)", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("post %s: %w", id, repository.ErrNotFound)
	}
	v := s.view(ctx, p)
	return &v, nil
}

// GetBySlug засчитывает просмотр. redirected означает, что запрос пришёл по старому slug,
// и клиенту стоит заменить адрес на канонический.
func (s *PostService) GetBySlug(ctx context.Context, slug string) (*models.PostView, bool, error) {
	log := logger.WithCtx(ctx)
	log.Debug("Получение поста по slug", zap.String("slug", slug))

	p, err := s.repo.GetBySlugOrRedirect(ctx, slug)
	if err != nil {
		log.Error("Ошибка получения поста по slug (repo)", zap.String("slug", slug), zap.Error(err))
		return nil, false, err
	}
	if p == nil {
		log.Debug("Пост не найден по slug", zap.String("slug", slug))
		return nil, false, fmt.Errorf("slug %s: %w", slug, repository.ErrNotFound)
	}
	v := s.view(ctx, p)
	return &v, p.Slug != slug, nil
}

func (s *PostService) Create(ctx context.Context, actor models.Actor, req models.CreatePostRequest) (*models.PostView, error) {
	log := logger.WithCtx(ctx)
	log.Info("Создание поста",
		zap.String("user_id", actor.UserID),
		zap.String("title", strings.TrimSpace(req.Title)),
		zap.Int("tags_count", len(req.Tags)),
	)

	title, err := validateTitle(req.Title)
	if err != nil {
		log.Warn("Валидация не пройдена: заголовок", zap.Error(err))
		return nil, err
	}
	content, err := s.sanitizeContent(req.Content)
	if err != nil {
		log.Warn("Валидация не пройдена: контент", zap.Int("raw_len", len(req.Content)), zap.Error(err))
		return nil, err
	}
	tags, err := normalizeTags(req.Tags)
	if err != nil {
		log.Warn("Валидация не пройдена: теги", zap.Int("tags_count", len(req.Tags)), zap.Error(err))
		return nil, err
	}

	var userID *string
	if actor.UserID != "" {
		uid := actor.UserID
		userID = &uid
	}

	p, err := s.repo.Create(ctx, repository.CreateInput{
		Title:         title,
		Content:       content,
		UserID:        userID,
		Tags:          tags,
		FeaturedImage: strings.TrimSpace(req.FeaturedImage),
	})
	if err != nil {
		log.Error("Ошибка создания поста (repo)", zap.Error(err))
		return nil, err
	}

	log.Info("Пост создан", zap.String("id", p.ID), zap.String("slug", p.Slug))
	s.publish(ctx, events.PostCreated, p)
	v := s.view(ctx, p)
	return &v, nil
}

func (s *PostService) Update(ctx context.Context, actor models.Actor, id string, req models.UpdatePostRequest) (*models.PostView, error) {
	log := logger.WithCtx(ctx)
	log.Info("Обновление поста", zap.String("id", id), zap.String("user_id", actor.UserID))

	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.Error("Ошибка получения поста для обновления (repo)", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if cur == nil {
		log.Warn("Пост для обновления не найден", zap.String("id", id))
		return nil, fmt.Errorf("post %s: %w", id, repository.ErrNotFound)
	}
	if !actor.CanEdit(cur) {
		log.Warn("Попытка изменить чужой пост", zap.String("id", id), zap.String("user_id", actor.UserID))
		return nil, fmt.Errorf("post %s: %w", id, ErrForbidden)
	}

	var patch repository.PostPatch
	if req.Title != nil {
		title, err := validateTitle(*req.Title)
		if err != nil {
			log.Warn("Валидация не пройдена: заголовок", zap.Error(err))
			return nil, err
		}
		patch.Title = &title
	}
	if req.Content != nil {
		content, err := s.sanitizeContent(*req.Content)
		if err != nil {
			log.Warn("Валидация не пройдена: контент", zap.Error(err))
			return nil, err
		}
		patch.Content = &content
	}
	if req.Tags != nil {
		tags, err := normalizeTags(*req.Tags)
		if err != nil {
			log.Warn("Валидация не пройдена: теги", zap.Error(err))
			return nil, err
		}
		patch.Tags = &tags
	}
	if req.FeaturedImage != nil {
		img := strings.TrimSpace(*req.FeaturedImage)
		patch.FeaturedImage = &img
	}

	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		log.Error("Ошибка обновления поста (repo)", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	log.Info("Пост обновлён", zap.String("id", id), zap.String("slug", p.Slug))
	s.publish(ctx, events.PostUpdated, p)
	v := s.view(ctx, p)
	return &v, nil
}

// Delete идемпотентен: удаление отсутствующего поста возвращает его id без ошибки.
func (s *PostService) Delete(ctx context.Context, actor models.Actor, id string) (string, error) {
	log := logger.WithCtx(ctx)
	log.Info("Удаление поста", zap.String("id", id), zap.String("user_id", actor.UserID))

	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.Error("Ошибка получения поста для удаления (repo)", zap.String("id", id), zap.Error(err))
		return "", err
	}
	if cur != nil && !actor.CanEdit(cur) {
		log.Warn("Попытка удалить чужой пост", zap.String("id", id), zap.String("user_id", actor.UserID))
		return "", fmt.Errorf("post %s: %w", id, ErrForbidden)
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		log.Error("Ошибка удаления поста (repo)", zap.String("id", id), zap.Error(err))
		return "", err
	}
	if cur != nil {
		log.Info("Пост удалён", zap.String("id", id))
		s.publish(ctx, events.PostDeleted, cur)
	}
	return deleted, nil
}

// Reset возвращает демо-данные.
func (s *PostService) Reset(ctx context.Context) error {
	log := logger.WithCtx(ctx)
	log.Warn("Сброс постов к начальным данным")
	if err := s.repo.Reset(ctx); err != nil {
		log.Error("Ошибка сброса постов (repo)", zap.Error(err))
		return err
	}
	return nil
}

func (s *PostService) page(ctx context.Context, page repository.Page) models.PostPage {
	names := s.authorNames(ctx, page.Items)
	docs := make([]models.PostView, 0, len(page.Items))
	for i := range page.Items {
		docs = append(docs, s.viewWith(&page.Items[i], names))
	}
	return models.PostPage{Total: page.Total, Documents: docs}
}

func (s *PostService) view(ctx context.Context, p *models.Post) models.PostView {
	return s.viewWith(p, s.authorNames(ctx, []models.Post{*p}))
}

func (s *PostService) viewWith(p *models.Post, names map[string]string) models.PostView {
	name := UnknownAuthor
	if p.UserID != nil {
		if n, ok := names[*p.UserID]; ok {
			name = n
		}
	}
	return models.PostView{
		Post:       *p,
		AuthorName: name,
		Excerpt:    s.excerpt(p.Content),
	}
}

// authorNames возвращает имена авторов по userId. Неизвестных в карте нет.
func (s *PostService) authorNames(ctx context.Context, posts []models.Post) map[string]string {
	names := map[string]string{}
	if s.users == nil {
		return names
	}

	seen := map[string]struct{}{}
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.UserID == nil {
			continue
		}
		if _, ok := seen[*p.UserID]; ok {
			continue
		}
		seen[*p.UserID] = struct{}{}
		ids = append(ids, *p.UserID)
	}
	if len(ids) == 0 {
		return names
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		logger.WithCtx(ctx).Warn("Не удалось получить авторов", zap.Int("count", len(ids)), zap.Error(err))
		return names
	}
	for id, u := range users {
		if u != nil && strings.TrimSpace(u.Name) != "" {
			names[id] = u.Name
		}
	}
	return names
}

func (s *PostService) excerpt(html string) string {
	text := strings.Join(strings.Fields(s.plain.Sanitize(html)), " ")
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:excerptRunes])) + "…"
}

func (s *PostService) sanitizeContent(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: content is empty", ErrValidation)
	}
	clean := strings.TrimSpace(s.policy.Sanitize(raw))
	if clean == "" {
		return "", fmt.Errorf("%w: content is empty after sanitizing", ErrValidation)
	}
	return clean, nil
}

// publish: ошибки публикации только логируются.
func (s *PostService) publish(ctx context.Context, typ string, p *models.Post) {
	ev := events.PostEvent{
		Type:       typ,
		PostID:     p.ID,
		Slug:       p.Slug,
		OccurredAt: time.Now().UTC(),
	}
	if p.UserID != nil {
		ev.UserID = *p.UserID
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logger.WithCtx(ctx).Warn("Не удалось опубликовать событие",
			zap.String("type", typ),
			zap.String("post_id", p.ID),
			zap.Error(err),
		)
	}
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if l := utf8.RuneCountInString(title); l < 1 || l > maxTitleRunes {
		return "", fmt.Errorf("%w: title must be 1 to %d characters", ErrValidation, maxTitleRunes)
	}
	return title, nil
}

func normalizeTags(in []string) ([]string, error) {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, fmt.Errorf("%w: at most %d tags", ErrValidation, maxTags)
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
