package handlers

import (
	"net/http"
	"strconv"

	"blogify/internal/logger"
	"blogify/internal/middleware"
	"blogify/internal/models"
	"blogify/internal/postcache"
	"blogify/internal/services"
	"blogify/internal/utils/helpers"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type PostHandler struct {
	service *services.PostService
	cache   *postcache.Store
}

func NewPostHandler(service *services.PostService, cache *postcache.Store) *PostHandler {
	return &PostHandler{service: service, cache: cache}
}

type slugResponse struct {
	Post          *models.PostView `json:"post"`
	Redirected    bool             `json:"redirected"`
	CanonicalSlug string           `json:"canonicalSlug"`
}

type deleteResponse struct {
	ID string `json:"id"`
}

// List godoc
// @Summary      Лента постов
// @Description  Поиск без учёта регистра по заголовку и тексту. Новые первыми.
// @Tags         posts
// @Produce      json
// @Param        q       query  string false "Поиск"
// @Param        limit   query  int    false "Лимит (по умолч. 20, макс. 100)"
// @Param        offset  query  int    false "Смещение"
// @Success      200 {object} models.PostPage
// @Router       /api/posts [get]
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := atoiDefault(q.Get("limit"), 0), atoiDefault(q.Get("offset"), 0)

	page, err := h.service.List(r.Context(), q.Get("q"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.JSON(w, http.StatusOK, page)
}

// ListByUser godoc
// @Summary      Посты пользователя
// @Tags         posts
// @Produce      json
// @Param        id      path   string true  "ID пользователя"
// @Param        limit   query  int    false "Лимит"
// @Param        offset  query  int    false "Смещение"
// @Success      200 {object} models.PostPage
// @Router       /api/users/{id}/posts [get]
func (h *PostHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := mux.Vars(r)["id"]

	page, err := h.service.ListByUser(r.Context(), userID, atoiDefault(q.Get("limit"), 0), atoiDefault(q.Get("offset"), 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.JSON(w, http.StatusOK, page)
}

// GetByID godoc
// @Summary      Пост по ID (без учёта просмотра)
// @Tags         posts
// @Produce      json
// @Param        id  path  string true "ID поста"
// @Success      200 {object} models.PostView
// @Failure      404 {object} helpers.Response
// @Router       /api/posts/{id} [get]
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.JSON(w, http.StatusOK, v)
}

// GetBySlug godoc
// @Summary      Пост по slug
// @Description  Засчитывает просмотр. Старые slug тоже находят пост; тогда redirected=true.
// @Tags         posts
// @Produce      json
// @Param        slug  path  string true "Slug"
// @Success      200 {object} slugResponse
// @Failure      404 {object} helpers.Response
// @Router       /api/posts/slug/{slug} [get]
func (h *PostHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	v, redirected, err := h.service.GetBySlug(r.Context(), slug)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if redirected {
		logger.WithCtx(r.Context()).Debug("Переход по старому slug", zap.String("from", slug), zap.String("to", v.Slug))
	}
	helpers.JSON(w, http.StatusOK, slugResponse{Post: v, Redirected: redirected, CanonicalSlug: v.Slug})
}

// Create godoc
// @Summary      Создать пост
// @Tags         posts
// @Accept       json
// @Produce      json
// @Param        body  body  models.CreatePostRequest true "Данные поста"
// @Success      201 {object} models.PostView
// @Failure      400 {object} helpers.Response
// @Failure      401 {object} helpers.Response
// @Security     BearerAuth
// @Router       /api/posts [post]
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		helpers.Error(w, http.StatusUnauthorized, "Неавторизован")
		return
	}
	var req models.CreatePostRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		logger.WithCtx(r.Context()).Warn("Ошибка декодирования JSON в Create", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	v, err := h.cache.AddPost(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.JSON(w, http.StatusCreated, v)
}

// Update godoc
// @Summary      Изменить пост
// @Description  Частичное обновление. Смена заголовка меняет slug, старый остаётся редиректом.
// @Tags         posts
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true "ID поста"
// @Param        body  body  models.UpdatePostRequest true "Изменяемые поля"
// @Success      200 {object} models.PostView
// @Failure      400 {object} helpers.Response
// @Failure      403 {object} helpers.Response
// @Failure      404 {object} helpers.Response
// @Security     BearerAuth
// @Router       /api/posts/{id} [patch]
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		helpers.Error(w, http.StatusUnauthorized, "Неавторизован")
		return
	}
	var req models.UpdatePostRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		logger.WithCtx(r.Context()).Warn("Ошибка декодирования JSON в Update", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "Невалидный JSON")
		return
	}

	v, err := h.cache.UpdatePost(r.Context(), actor, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.JSON(w, http.StatusOK, v)
}

// Delete godoc
// @Summary      Удалить пост
// @Description  Идемпотентно: удаление отсутствующего поста тоже 200.
// @Tags         posts
// @Produce      json
// @Param        id  path  string true "ID поста"
// @Success      200 {object} deleteResponse
// @Failure      403 {object} helpers.Response
// @Security     BearerAuth
// @Router       /api/posts/{id} [delete]
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		helpers.Error(w, http.StatusUnauthorized, "Неавторизован")
		return
	}
	id, err := h.cache.DeletePost(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.JSON(w, http.StatusOK, deleteResponse{ID: id})
}

// State godoc
// @Summary      Состояние клиентского кэша постов
// @Tags         posts
// @Produce      json
// @Param        refresh  query  bool false "Перезагрузить из репозитория"
// @Success      200 {object} postcache.Snapshot
// @Router       /api/state/posts [get]
func (h *PostHandler) State(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if _, err := h.cache.FetchPosts(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	helpers.JSON(w, http.StatusOK, h.cache.Snapshot())
}

// Reset godoc
// @Summary      Сброс демо-данных
// @Tags         admin
// @Produce      json
// @Success      200 {object} helpers.Response
// @Security     BearerAuth
// @Router       /api/admin/reset [post]
func (h *PostHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.cache.FetchPosts(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	helpers.JSON(w, http.StatusOK, "Данные сброшены")
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
