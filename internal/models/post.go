package models

import "time"

// Post: каноническая запись поста после нормализации.
type Post struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	UserID        *string   `json:"userId"`
	Tags          []string  `json:"tags"`
	Slug          string    `json:"slug"`
	Redirects     []string  `json:"redirects"`
	FeaturedImage string    `json:"featuredImage"`
	Views         int       `json:"views"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RawPost: запись в том виде, в каком она лежит в хранилище или приходит снаружи.
// Все поля необязательные; $id и author остались от старых версий схемы.
type RawPost struct {
	ID            string     `json:"id,omitempty"`
	LegacyID      string     `json:"$id,omitempty"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	UserID        *string    `json:"userId,omitempty"`
	Author        *string    `json:"author,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	Slug          string     `json:"slug,omitempty"`
	Redirects     []string   `json:"redirects,omitempty"`
	FeaturedImage string     `json:"featuredImage,omitempty"`
	Views         *int       `json:"views,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// Raw возвращает представление поста в «сыром» виде (глубокая копия).
func (p Post) Raw() RawPost {
	created, updated, views := p.CreatedAt, p.UpdatedAt, p.Views
	return RawPost{
		ID:            p.ID,
		Title:         p.Title,
		Content:       p.Content,
		UserID:        cloneStrPtr(p.UserID),
		Tags:          cloneStrings(p.Tags),
		Slug:          p.Slug,
		Redirects:     cloneStrings(p.Redirects),
		FeaturedImage: p.FeaturedImage,
		Views:         &views,
		CreatedAt:     &created,
		UpdatedAt:     &updated,
	}
}

// Clone: глубокая копия, чтобы наружу не утекали ссылки на внутренний индекс.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	c.UserID = cloneStrPtr(p.UserID)
	c.Tags = cloneStrings(p.Tags)
	c.Redirects = cloneStrings(p.Redirects)
	return &c
}

// OwnedBy: проверка владельца на уровне UI, без принуждения.
func (p *Post) OwnedBy(userID string) bool {
	return p != nil && p.UserID != nil && *p.UserID == userID
}

// CreatePostRequest: тело запроса на создание поста.
type CreatePostRequest struct {
	Title         string   `json:"title"         example:"Hello, World!"`
	Content       string   `json:"content"       example:"<p>Первый пост</p>"`
	Tags          []string `json:"tags"          example:"go,blog"`
	FeaturedImage string   `json:"featuredImage" example:"https://picsum.photos/600/300"`
}

// UpdatePostRequest: частичное обновление; nil означает «не менять».
type UpdatePostRequest struct {
	Title         *string   `json:"title,omitempty"`
	Content       *string   `json:"content,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
	FeaturedImage *string   `json:"featuredImage,omitempty"`
}

// PostView: пост для ответа API, с именем автора и коротким превью.
type PostView struct {
	Post
	AuthorName string `json:"authorName"`
	Excerpt    string `json:"excerpt"`
}

// PostPage: страница ленты, total считается до пагинации.
type PostPage struct {
	Total     int        `json:"total"`
	Documents []PostView `json:"documents"`
}

func cloneStrPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
