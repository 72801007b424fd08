package repository

import (
	"time"

	"blogify/internal/models"
)

const (
	DefaultFeaturedImage = "https://placekitten.com/800/400"
	UpdatedPostImage     = "https://placehold.co/600x300?text=Updated+Post"
	createdImagePattern  = "https://picsum.photos/600/300?random=%s"
)

// legacyMigration приводит одну из старых форм записи к текущей схеме.
type legacyMigration func(*models.RawPost)

var legacyMigrations = []legacyMigration{
	migrateAppwriteID,
	migrateAuthorField,
}

// migrateAppwriteID: документы Appwrite хранили идентификатор в "$id".
func migrateAppwriteID(r *models.RawPost) {
	if r.ID == "" && r.LegacyID != "" {
		r.ID = r.LegacyID
	}
	r.LegacyID = ""
}

// migrateAuthorField: до появления userId владелец лежал в "author".
func migrateAuthorField(r *models.RawPost) {
	if r.UserID != nil && *r.UserID == "" {
		r.UserID = nil
	}
	if r.UserID == nil && r.Author != nil && *r.Author != "" {
		author := *r.Author
		r.UserID = &author
	}
	r.Author = nil
}

// Normalize превращает сырую запись в канонический пост с заполненными
// необязательными полями. Вход не изменяется; now используется, только если нет createdAt.
func Normalize(raw models.RawPost, now time.Time) models.Post {
	r := raw
	for _, migrate := range legacyMigrations {
		migrate(&r)
	}

	createdAt := now.UTC()
	if r.CreatedAt != nil {
		createdAt = *r.CreatedAt
	}
	updatedAt := createdAt
	if r.UpdatedAt != nil {
		updatedAt = *r.UpdatedAt
	}

	tags := []string{}
	if len(r.Tags) > 0 {
		tags = append(tags, r.Tags...)
	}
	redirects := []string{}
	if len(r.Redirects) > 0 {
		redirects = append(redirects, r.Redirects...)
	}

	image := r.FeaturedImage
	if image == "" {
		image = DefaultFeaturedImage
	}

	views := 0
	if r.Views != nil && *r.Views > 0 {
		views = *r.Views
	}

	var userID *string
	if r.UserID != nil {
		v := *r.UserID
		userID = &v
	}

	return models.Post{
		ID:            r.ID,
		Title:         r.Title,
		Content:       r.Content,
		UserID:        userID,
		Tags:          tags,
		Slug:          r.Slug,
		Redirects:     redirects,
		FeaturedImage: image,
		Views:         views,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}
