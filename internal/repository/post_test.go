package repository

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"blogify/internal/models"
	"blogify/internal/storage"
	"blogify/internal/testutil"
)

func newTestPostRepo(t *testing.T, kv storage.KV, seed string) (*PostRepository, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	ps := storage.NewPostStorage(kv)
	if seed != "" {
		ps.WithSeed([]byte(seed))
	}
	repo := NewPostRepository(context.Background(), ps, Options{Clock: clock})
	t.Cleanup(func() { _ = repo.Close() })
	return repo, clock
}

func mustCreate(t *testing.T, repo *PostRepository, title string) *models.Post {
	t.Helper()
	p, err := repo.Create(context.Background(), CreateInput{Title: title, Content: "<p>" + title + "</p>", UserID: strPtr("1")})
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return p
}

func TestPostRepository_Scenario(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "[]")

	first := mustCreate(t, repo, "Hello, World!")
	if first.Slug != "hello-world" {
		t.Fatalf("slug = %q, ожидался hello-world", first.Slug)
	}
	if first.Views != 0 {
		t.Fatalf("views = %d, ожидался 0", first.Views)
	}
	if !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("createdAt %v != updatedAt %v", first.CreatedAt, first.UpdatedAt)
	}

	second := mustCreate(t, repo, "Hello, World!")
	if second.Slug != "hello-world-1" {
		t.Fatalf("slug второго = %q, ожидался hello-world-1", second.Slug)
	}

	got, err := repo.GetBySlugOrRedirect(ctx, "hello-world")
	if err != nil {
		t.Fatalf("GetBySlugOrRedirect: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("найден не тот пост: %+v", got)
	}
	if got.Views != 1 || got.Slug != "hello-world" {
		t.Fatalf("views = %d, slug = %q", got.Views, got.Slug)
	}

	title := "Goodbye World"
	updated, err := repo.Update(ctx, first.ID, PostPatch{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Slug != "goodbye-world" {
		t.Fatalf("slug после переименования = %q", updated.Slug)
	}
	if len(updated.Redirects) != 1 || updated.Redirects[0] != "hello-world" {
		t.Fatalf("redirects = %v", updated.Redirects)
	}
	viaOld, _ := repo.GetBySlugOrRedirect(ctx, "hello-world")
	if viaOld == nil || viaOld.ID != first.ID {
		t.Fatalf("старый slug не ведёт на пост: %+v", viaOld)
	}

	before, _ := repo.List(ctx, ListOptions{})
	if _, err := repo.Delete(ctx, second.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	after, _ := repo.List(ctx, ListOptions{})
	if after.Total != before.Total-1 {
		t.Fatalf("total = %d, ожидалось %d", after.Total, before.Total-1)
	}
	for _, p := range after.Items {
		if p.ID == second.ID {
			t.Fatal("удалённый пост всё ещё в списке")
		}
	}
}

func TestPostRepository_SlugsStayUnique(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestPostRepo(t, storage.NewMemoryKV(), "[]")

	titles := []string{"Go", "Go", "go!", "Rust", "Go", "Rust?"}
	var ids []string
	for _, title := range titles {
		ids = append(ids, mustCreate(t, repo, title).ID)
		clock.Advance(time.Millisecond)
	}
	renames := []string{"Rust", "Go", "Go", "Zig", "Go"}
	for i, title := range renames {
		title := title
		if _, err := repo.Update(ctx, ids[i], PostPatch{Title: &title}); err != nil {
			t.Fatalf("Update: %v", err)
		}

		page, _ := repo.List(ctx, ListOptions{Limit: 100})
		seen := map[string]string{}
		for _, p := range page.Items {
			if other, dup := seen[p.Slug]; dup {
				t.Fatalf("slug %q у постов %s и %s", p.Slug, other, p.ID)
			}
			seen[p.Slug] = p.ID
			for _, r := range p.Redirects {
				if r == p.Slug {
					t.Fatalf("живой slug %q в redirects поста %s", r, p.ID)
				}
			}
		}
	}
}

func TestPostRepository_RedirectsSurviveRenames(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "[]")

	p := mustCreate(t, repo, "Title 0")
	slugs := []string{p.Slug}
	for _, title := range []string{"Title 1", "Title 2", "Title 3", "Title 4"} {
		title := title
		u, err := repo.Update(ctx, p.ID, PostPatch{Title: &title})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		slugs = append(slugs, u.Slug)
	}

	for _, slug := range slugs {
		got, err := repo.FindBySlug(ctx, slug)
		if err != nil || got == nil || got.ID != p.ID {
			t.Fatalf("FindBySlug(%q) = %+v, %v", slug, got, err)
		}
	}

	final, _ := repo.GetByID(ctx, p.ID)
	if len(final.Redirects) != 4 {
		t.Fatalf("redirects = %v, ожидалось 4 старых slug", final.Redirects)
	}
}

func TestPostRepository_RenameBackDropsLiveSlugFromRedirects(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "[]")

	p := mustCreate(t, repo, "First")
	second, third := "Second", "First"
	_, _ = repo.Update(ctx, p.ID, PostPatch{Title: &second})
	u, err := repo.Update(ctx, p.ID, PostPatch{Title: &third})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if u.Slug != "first" {
		t.Fatalf("slug = %q", u.Slug)
	}
	if len(u.Redirects) != 1 || u.Redirects[0] != "second" {
		t.Fatalf("redirects = %v, ожидалось [second]", u.Redirects)
	}
}

func TestPostRepository_TitleChangeWithSameSlugKeepsRedirects(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestPostRepo(t, storage.NewMemoryKV(), "[]")

	p := mustCreate(t, repo, "Hello World")
	clock.Advance(time.Second)
	title := "Hello World!"
	u, err := repo.Update(ctx, p.ID, PostPatch{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if u.Title != title || u.Slug != "hello-world" {
		t.Fatalf("title/slug = %q/%q", u.Title, u.Slug)
	}
	if len(u.Redirects) != 0 {
		t.Fatalf("redirects = %v, ожидался пустой список", u.Redirects)
	}
	if !u.UpdatedAt.After(p.UpdatedAt) {
		t.Fatalf("updatedAt не сдвинулся: %v", u.UpdatedAt)
	}
}

func TestPostRepository_LiveSlugWinsOverRedirect(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "[]")

	a := mustCreate(t, repo, "Shared")
	renamed := "Other"
	_, _ = repo.Update(ctx, a.ID, PostPatch{Title: &renamed})
	b := mustCreate(t, repo, "Shared")
	if b.Slug != "shared" {
		t.Fatalf("slug нового поста = %q, ожидался shared", b.Slug)
	}

	got, _ := repo.FindBySlug(ctx, "shared")
	if got == nil || got.ID != b.ID {
		t.Fatalf("FindBySlug вернул %+v, ожидался живой пост %s", got, b.ID)
	}
}

func TestPostRepository_ViewCounting(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "[]")
	p := mustCreate(t, repo, "Popular")

	const k = 7
	for i := 0; i < k; i++ {
		if _, err := repo.GetBySlugOrRedirect(ctx, p.Slug); err != nil {
			t.Fatalf("GetBySlugOrRedirect: %v", err)
		}
	}

	pure, _ := repo.FindBySlug(ctx, p.Slug)
	byID, _ := repo.GetByID(ctx, p.ID)
	if pure.Views != k || byID.Views != k {
		t.Fatalf("views = %d/%d, ожидалось %d", pure.Views, byID.Views, k)
	}
	if !byID.UpdatedAt.Equal(p.UpdatedAt) {
		t.Fatal("просмотр не должен менять updatedAt")
	}
}

func TestPostRepository_ConcurrentViews(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "[]")
	p := mustCreate(t, repo, "Hot")

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := repo.RecordView(ctx, p.ID); err != nil {
					t.Errorf("RecordView: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, _ := repo.GetByID(ctx, p.ID)
	if got.Views != workers*perWorker {
		t.Fatalf("views = %d, ожидалось %d", got.Views, workers*perWorker)
	}
}

func TestPostRepository_RecordViewMissing(t *testing.T) {
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "[]")
	if _, err := repo.RecordView(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, ожидался ErrNotFound", err)
	}
}

func TestPostRepository_Misses(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "[]")

	if p, err := repo.GetByID(ctx, "nope"); p != nil || err != nil {
		t.Fatalf("GetByID = %+v, %v", p, err)
	}
	if p, err := repo.GetBySlugOrRedirect(ctx, "nope"); p != nil || err != nil {
		t.Fatalf("GetBySlugOrRedirect = %+v, %v", p, err)
	}
	title := "x"
	if _, err := repo.Update(ctx, "nope", PostPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update err = %v, ожидался ErrNotFound", err)
	}
}

func TestPostRepository_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "")

	before, _ := repo.List(ctx, ListOptions{})
	id, err := repo.Delete(ctx, "does-not-exist")
	if err != nil || id != "does-not-exist" {
		t.Fatalf("Delete = %q, %v", id, err)
	}
	after, _ := repo.List(ctx, ListOptions{})
	if after.Total != before.Total {
		t.Fatalf("total изменился: %d -> %d", before.Total, after.Total)
	}
}

func TestPostRepository_CreateDefaults(t *testing.T) {
	repo, clock := newTestPostRepo(t, storage.NewMemoryKV(), "[]")

	p := mustCreate(t, repo, "With image")
	if p.FeaturedImage != "https://picsum.photos/600/300?random="+p.ID {
		t.Fatalf("featuredImage = %q", p.FeaturedImage)
	}
	if p.UserID == nil || *p.UserID != "1" {
		t.Fatalf("userId = %v", p.UserID)
	}

	// часы не двигаются, но id всё равно растут
	q := mustCreate(t, repo, "Same millisecond")
	if q.ID <= p.ID {
		t.Fatalf("id %s не больше %s", q.ID, p.ID)
	}
	if want := clock.Now().UnixMilli(); p.ID != strconv.FormatInt(want, 10) {
		t.Fatalf("id = %s, ожидался %d", p.ID, want)
	}
}

func TestPostRepository_UpdateClearsImage(t *testing.T) {
	repo, clock := newTestPostRepo(t, storage.NewMemoryKV(), "[]")
	p := mustCreate(t, repo, "Pic")
	clock.Advance(time.Minute)

	empty := ""
	u, err := repo.Update(context.Background(), p.ID, PostPatch{FeaturedImage: &empty})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if u.FeaturedImage != UpdatedPostImage {
		t.Fatalf("featuredImage = %q", u.FeaturedImage)
	}
	if !u.UpdatedAt.After(u.CreatedAt) {
		t.Fatal("updatedAt не сдвинулся")
	}
	if u.Slug != p.Slug {
		t.Fatal("slug изменился без смены заголовка")
	}
}

func TestPostRepository_ListFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	repo, clock := newTestPostRepo(t, storage.NewMemoryKV(), "[]")
	for _, title := range []string{"Go basics", "Rust basics", "Go advanced", "Cooking"} {
		mustCreate(t, repo, title)
		clock.Advance(time.Second)
	}

	page, _ := repo.List(ctx, ListOptions{Query: "GO"})
	if page.Total != 2 {
		t.Fatalf("total = %d, ожидалось 2", page.Total)
	}
	if page.Items[0].Title != "Go advanced" {
		t.Fatalf("первым должен быть самый новый пост, получен %q", page.Items[0].Title)
	}

	page, _ = repo.List(ctx, ListOptions{Limit: 2, Offset: 1})
	if page.Total != 4 || len(page.Items) != 2 || page.Items[0].Title != "Go advanced" {
		t.Fatalf("page = %+v", page)
	}

	page, _ = repo.List(ctx, ListOptions{Limit: math.MaxInt, Offset: 1})
	if page.Total != 4 || len(page.Items) != 3 {
		t.Fatalf("огромный limit: items=%d total=%d, ожидалось 3 и 4", len(page.Items), page.Total)
	}

	page, _ = repo.List(ctx, ListOptions{Offset: 10})
	if page.Total != 4 || len(page.Items) != 0 {
		t.Fatalf("page за пределами = %+v", page)
	}

	byUser, _ := repo.ListByUser(ctx, "1", ListOptions{})
	if byUser.Total != 4 {
		t.Fatalf("ListByUser total = %d", byUser.Total)
	}
	none, _ := repo.ListByUser(ctx, "2", ListOptions{})
	if none.Total != 0 || none.Items == nil {
		t.Fatalf("ListByUser для чужого = %+v", none)
	}
}

func TestPostRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "[]")
	p := mustCreate(t, repo, "Immutable")

	p.Title = "hacked"
	p.Tags = append(p.Tags, "x")
	got, _ := repo.GetByID(ctx, p.ID)
	if got.Title != "Immutable" || len(got.Tags) != 0 {
		t.Fatalf("индекс изменён снаружи: %+v", got)
	}
}

func TestPostRepository_LoadsSeedWithLegacyRecords(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "")

	legacy, _ := repo.FindBySlug(ctx, "welcome-to-blogify")
	if legacy == nil || legacy.ID != "1717171717002" {
		t.Fatalf("старый пост не мигрирован: %+v", legacy)
	}
	if legacy.UserID == nil || *legacy.UserID != "1" {
		t.Fatalf("author не перенесён в userId: %v", legacy.UserID)
	}
	if legacy.FeaturedImage != DefaultFeaturedImage {
		t.Fatalf("featuredImage = %q", legacy.FeaturedImage)
	}

	viaRedirect, _ := repo.FindBySlug(ctx, "middleware-in-go")
	if viaRedirect == nil || viaRedirect.Slug != "writing-middleware-in-go" {
		t.Fatalf("redirect из сида не работает: %+v", viaRedirect)
	}
}

func TestPostRepository_RepairsBrokenCollection(t *testing.T) {
	ctx := context.Background()
	seed := `[
		{"id":"1","title":"A","slug":"same"},
		{"id":"2","title":"B","slug":"same"},
		{"id":"2","title":"dup id","slug":"dup"},
		{"title":"No id"}
	]`
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), seed)

	page, _ := repo.List(ctx, ListOptions{Limit: 100})
	if page.Total != 3 {
		t.Fatalf("total = %d, ожидалось 3", page.Total)
	}
	slugs := map[string]bool{}
	for _, p := range page.Items {
		if p.ID == "" || p.Slug == "" {
			t.Fatalf("пустой id или slug: %+v", p)
		}
		if slugs[p.Slug] {
			t.Fatalf("повтор slug %q", p.Slug)
		}
		slugs[p.Slug] = true
	}
	if b, _ := repo.GetByID(ctx, "2"); b == nil || b.Slug != "b" {
		t.Fatalf("конфликтующий slug не пересчитан: %+v", b)
	}
}

func TestPostRepository_FlushAndReopen(t *testing.T) {
	ctx := context.Background()
	kv, err := storage.NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}

	repo := NewPostRepository(ctx, storage.NewPostStorage(kv).WithSeed([]byte("[]")), Options{Clock: testutil.FixedClock()})
	p, _ := repo.Create(ctx, CreateInput{Title: "Persist me", Content: "c"})
	_, _ = repo.GetBySlugOrRedirect(ctx, p.Slug)
	if err := repo.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := NewPostRepository(ctx, storage.NewPostStorage(kv), Options{})
	defer reopened.Close()
	got, _ := reopened.GetByID(ctx, p.ID)
	if got == nil || got.Slug != "persist-me" || got.Views != 1 {
		t.Fatalf("после переоткрытия: %+v", got)
	}
}

func TestPostRepository_CoalescesWrites(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewCountingKV(storage.NewMemoryKV())
	repo := NewPostRepository(ctx, storage.NewPostStorage(kv).WithSeed([]byte("[]")),
		Options{Clock: testutil.FixedClock(), FlushDelay: 200 * time.Millisecond})

	for i := 0; i < 20; i++ {
		if _, err := repo.Create(ctx, CreateInput{Title: "Burst", Content: "c"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	_ = repo.Close()

	// сид + не больше пары сбросов на всю серию
	if sets := kv.Sets(storage.PostsKey); sets > 3 {
		t.Fatalf("записей в хранилище: %d, ожидалась склейка", sets)
	}
	raw, _, _ := kv.Get(ctx, storage.PostsKey)
	var stored []models.RawPost
	if err := json.Unmarshal(raw, &stored); err != nil || len(stored) != 20 {
		t.Fatalf("сохранено %d постов, err = %v", len(stored), err)
	}
}

func TestPostRepository_QuotaExceededIsSwallowed(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	kv.Quota = 64
	repo := NewPostRepository(ctx, storage.NewPostStorage(kv).WithSeed([]byte("[]")), Options{Clock: testutil.FixedClock()})
	defer repo.Close()

	p, err := repo.Create(ctx, CreateInput{Title: "Too big to store", Content: string(make([]byte, 256))})
	if err != nil {
		t.Fatalf("Create вернул ошибку: %v", err)
	}
	repo.Flush(ctx)

	got, _ := repo.GetByID(ctx, p.ID)
	if got == nil {
		t.Fatal("пост пропал из памяти")
	}
	raw, _, _ := kv.Get(ctx, storage.PostsKey)
	if string(raw) != "[]" {
		t.Fatalf("в хранилище неожиданно %q", raw)
	}
}

func TestPostRepository_UnavailableStorage(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository(ctx, storage.NewPostStorage(&testutil.FailingKV{}), Options{})
	defer repo.Close()

	page, err := repo.List(ctx, ListOptions{})
	if err != nil || page.Total != 0 {
		t.Fatalf("List = %+v, %v", page, err)
	}
	if _, err := repo.Create(ctx, CreateInput{Title: "Still works", Content: "c"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	repo.Flush(ctx)
}

func TestPostRepository_CorruptStorage(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	_ = kv.Set(ctx, storage.PostsKey, []byte(`{"not":"an array"}`))
	repo := NewPostRepository(ctx, storage.NewPostStorage(kv), Options{})
	defer repo.Close()

	page, _ := repo.List(ctx, ListOptions{})
	if page.Total != 0 {
		t.Fatalf("total = %d, ожидалась пустая коллекция", page.Total)
	}
}

func TestPostRepository_Reset(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestPostRepo(t, storage.NewMemoryKV(), "")

	mustCreate(t, repo, "Temporary")
	if err := repo.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	page, _ := repo.List(ctx, ListOptions{})
	if page.Total != 3 {
		t.Fatalf("после сброса total = %d, ожидалось 3", page.Total)
	}
}

func TestPostRepository_LatencyRespectsContext(t *testing.T) {
	repo := NewPostRepository(context.Background(),
		storage.NewPostStorage(storage.NewMemoryKV()).WithSeed([]byte("[]")),
		Options{Latency: time.Hour})
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := repo.List(ctx, ListOptions{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, ожидался DeadlineExceeded", err)
	}
}
