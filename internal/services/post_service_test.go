package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"blogify/internal/events"
	"blogify/internal/models"
	"blogify/internal/repository"
	"blogify/internal/storage"
	"blogify/internal/testutil"
)

type fakeAuthors map[string]*models.User

func (f fakeAuthors) GetByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	out := map[string]*models.User{}
	for _, id := range ids {
		if u, ok := f[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.PostEvent) error { return errors.New("broker down") }
func (failingPublisher) Close() error                                     { return nil }

func newTestPostService(t *testing.T, pub events.Publisher) *PostService {
	t.Helper()
	ps := storage.NewPostStorage(storage.NewMemoryKV()).WithSeed([]byte("[]"))
	repo := repository.NewPostRepository(context.Background(), ps, repository.Options{Clock: testutil.FixedClock()})
	t.Cleanup(func() { _ = repo.Close() })
	authors := fakeAuthors{"1": {ID: "1", Name: "Maria"}}
	return NewPostService(repo, authors, pub)
}

var maria = models.Actor{UserID: "1", Role: "author"}

func TestPostService_CreateSanitizesAndPublishes(t *testing.T) {
	rec := &events.Recorder{}
	svc := newTestPostService(t, rec)

	v, err := svc.Create(context.Background(), maria, models.CreatePostRequest{
		Title:   "  Hello, World!  ",
		Content: `<p onclick="x()">Hi <script>alert(1)</script><img src="a.png" alt="a"></p>`,
		Tags:    []string{" Go ", "go", "", "Blog"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.Title != "Hello, World!" || v.Slug != "hello-world" {
		t.Fatalf("title/slug = %q/%q", v.Title, v.Slug)
	}
	if strings.Contains(v.Content, "script") || strings.Contains(v.Content, "onclick") {
		t.Fatalf("контент не очищен: %s", v.Content)
	}
	if !strings.Contains(v.Content, `<img src="a.png" alt="a">`) {
		t.Fatalf("img потерян: %s", v.Content)
	}
	if strings.Join(v.Tags, ",") != "go,blog" {
		t.Fatalf("tags = %v", v.Tags)
	}
	if v.AuthorName != "Maria" || v.Excerpt != "Hi" {
		t.Fatalf("authorName/excerpt = %q/%q", v.AuthorName, v.Excerpt)
	}

	evs := rec.Events()
	if len(evs) != 1 || evs[0].Type != events.PostCreated || evs[0].PostID != v.ID || evs[0].UserID != "1" {
		t.Fatalf("events = %+v", evs)
	}
}

func TestPostService_Validation(t *testing.T) {
	svc := newTestPostService(t, nil)
	tooManyTags := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}

	tests := []struct {
		name string
		req  models.CreatePostRequest
	}{
		{"blank title", models.CreatePostRequest{Title: "   ", Content: "x"}},
		{"long title", models.CreatePostRequest{Title: strings.Repeat("я", 256), Content: "x"}},
		{"blank content", models.CreatePostRequest{Title: "t", Content: "  "}},
		{"only script", models.CreatePostRequest{Title: "t", Content: "<script>x</script>"}},
		{"too many tags", models.CreatePostRequest{Title: "t", Content: "x", Tags: tooManyTags}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), maria, tt.req); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, ожидался ErrValidation", err)
			}
		})
	}
}

func TestPostService_GetBySlugReportsRedirect(t *testing.T) {
	ctx := context.Background()
	svc := newTestPostService(t, nil)
	v, _ := svc.Create(ctx, maria, models.CreatePostRequest{Title: "Old name", Content: "x"})

	title := "New name"
	if _, err := svc.Update(ctx, maria, v.ID, models.UpdatePostRequest{Title: &title}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, redirected, err := svc.GetBySlug(ctx, "old-name")
	if err != nil || !redirected || got.Slug != "new-name" || got.Views != 1 {
		t.Fatalf("GetBySlug = %+v, %v, %v", got, redirected, err)
	}
	_, redirected, _ = svc.GetBySlug(ctx, "new-name")
	if redirected {
		t.Fatal("канонический slug не должен считаться редиректом")
	}
	if _, _, err := svc.GetBySlug(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, ожидался ErrNotFound", err)
	}
}

func TestPostService_Ownership(t *testing.T) {
	ctx := context.Background()
	svc := newTestPostService(t, nil)
	v, _ := svc.Create(ctx, maria, models.CreatePostRequest{Title: "Mine", Content: "x"})

	stranger := models.Actor{UserID: "3", Role: "reader"}
	title := "Stolen"
	if _, err := svc.Update(ctx, stranger, v.ID, models.UpdatePostRequest{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Update err = %v, ожидался ErrForbidden", err)
	}
	if _, err := svc.Delete(ctx, stranger, v.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Delete err = %v, ожидался ErrForbidden", err)
	}

	admin := models.Actor{UserID: "9", Role: models.RoleAdmin}
	if _, err := svc.Update(ctx, admin, v.ID, models.UpdatePostRequest{Title: &title}); err != nil {
		t.Fatalf("админ должен редактировать любой пост: %v", err)
	}
}

func TestPostService_DeleteMissingIsNotAnError(t *testing.T) {
	rec := &events.Recorder{}
	svc := newTestPostService(t, rec)

	id, err := svc.Delete(context.Background(), maria, "404")
	if err != nil || id != "404" {
		t.Fatalf("Delete = %q, %v", id, err)
	}
	if len(rec.Events()) != 0 {
		t.Fatal("для несуществующего поста событие не публикуется")
	}
}

func TestPostService_UnknownAuthor(t *testing.T) {
	ctx := context.Background()
	svc := newTestPostService(t, nil)
	v, _ := svc.Create(ctx, models.Actor{UserID: "99"}, models.CreatePostRequest{Title: "Orphan", Content: "x"})
	if v.AuthorName != UnknownAuthor {
		t.Fatalf("authorName = %q", v.AuthorName)
	}
}

func TestPostService_PublishFailureIsLogged(t *testing.T) {
	svc := newTestPostService(t, failingPublisher{})
	if _, err := svc.Create(context.Background(), maria, models.CreatePostRequest{Title: "t", Content: "x"}); err != nil {
		t.Fatalf("ошибка брокера не должна ломать создание: %v", err)
	}
}

func TestPostService_ListPage(t *testing.T) {
	ctx := context.Background()
	svc := newTestPostService(t, nil)
	for _, title := range []string{"One", "Two", "Three"} {
		_, _ = svc.Create(ctx, maria, models.CreatePostRequest{Title: title, Content: strings.Repeat("word ", 100)})
	}

	page, err := svc.List(ctx, "", 2, 0)
	if err != nil || page.Total != 3 || len(page.Documents) != 2 {
		t.Fatalf("List = %+v, %v", page, err)
	}
	if !strings.HasSuffix(page.Documents[0].Excerpt, "…") {
		t.Fatalf("длинный текст должен обрезаться: %q", page.Documents[0].Excerpt)
	}

	mine, _ := svc.ListByUser(ctx, "1", 0, 0)
	if mine.Total != 3 {
		t.Fatalf("ListByUser total = %d", mine.Total)
	}
}

type countingAuthors struct {
	AuthorLookup
	calls int
}

func (c *countingAuthors) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	c.calls++
	return c.AuthorLookup.GetByIDs(ctx, ids)
}

func TestPostService_ListResolvesAuthorsInOneLookup(t *testing.T) {
	ctx := context.Background()

	seed := make([]models.RawPost, 0, 20)
	for i := 0; i < 20; i++ {
		uid := "2"
		if i%5 == 0 {
			uid = "404"
		}
		seed = append(seed, models.RawPost{
			ID:      strconv.Itoa(1000 + i),
			Title:   "Post " + strconv.Itoa(i),
			Content: "<p>x</p>",
			UserID:  &uid,
		})
	}
	raw, err := json.Marshal(seed)
	if err != nil {
		t.Fatal(err)
	}

	kv := storage.NewMemoryKV()
	posts := repository.NewPostRepository(ctx, storage.NewPostStorage(kv).WithSeed(raw), repository.Options{Clock: testutil.FixedClock()})
	t.Cleanup(func() { _ = posts.Close() })

	const latency = 50 * time.Millisecond
	users := repository.NewUserRepository(ctx, storage.NewUserStorage(kv), repository.Options{Clock: testutil.FixedClock(), Latency: latency})
	authors := &countingAuthors{AuthorLookup: users}
	svc := NewPostService(posts, authors, nil)

	start := time.Now()
	page, err := svc.List(ctx, "", 20, 0)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Documents) != 20 {
		t.Fatalf("документов %d, ожидалось 20", len(page.Documents))
	}
	if authors.calls != 1 {
		t.Fatalf("запросов авторов %d, ожидался 1", authors.calls)
	}
	if elapsed >= 5*latency {
		t.Fatalf("List занял %v при задержке %v на вызов", elapsed, latency)
	}

	for _, d := range page.Documents {
		want := "Maria Writer"
		if *d.UserID == "404" {
			want = UnknownAuthor
		}
		if d.AuthorName != want {
			t.Fatalf("пост %s: автор %q, ожидался %q", d.ID, d.AuthorName, want)
		}
	}
}
