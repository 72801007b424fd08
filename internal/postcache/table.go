package postcache

import (
	"sort"

	"blogify/internal/models"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Table хранит нормализованную таблицу постов: id → пост плюс список id,
// отсортированный от новых к старым. Не потокобезопасна, её охраняет Store.
type Table struct {
	ids      []string
	entities map[string]models.Post
	Status   Status
	Error    string
}

func NewTable() *Table {
	return &Table{entities: make(map[string]models.Post), Status: StatusIdle}
}

// SetAll заменяет содержимое целиком.
func (t *Table) SetAll(posts []models.Post) {
	t.entities = make(map[string]models.Post, len(posts))
	for _, p := range posts {
		t.entities[p.ID] = *p.Clone()
	}
	t.resort()
}

// AddOne добавляет пост, если такого id ещё нет.
func (t *Table) AddOne(p models.Post) {
	if _, ok := t.entities[p.ID]; ok {
		return
	}
	t.entities[p.ID] = *p.Clone()
	t.resort()
}

func (t *Table) UpsertOne(p models.Post) {
	t.entities[p.ID] = *p.Clone()
	t.resort()
}

func (t *Table) RemoveOne(id string) {
	if _, ok := t.entities[id]; !ok {
		return
	}
	delete(t.entities, id)
	for i, x := range t.ids {
		if x == id {
			t.ids = append(t.ids[:i], t.ids[i+1:]...)
			break
		}
	}
}

func (t *Table) All() []models.Post {
	out := make([]models.Post, 0, len(t.ids))
	for _, id := range t.ids {
		p := t.entities[id]
		out = append(out, *p.Clone())
	}
	return out
}

func (t *Table) ByID(id string) (models.Post, bool) {
	p, ok := t.entities[id]
	if !ok {
		return models.Post{}, false
	}
	return *p.Clone(), true
}

func (t *Table) IDs() []string {
	out := make([]string, len(t.ids))
	copy(out, t.ids)
	return out
}

// resort: новые первыми по createdAt, при равенстве больший id первым.
func (t *Table) resort() {
	ids := make([]string, 0, len(t.entities))
	for id := range t.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := t.entities[ids[i]], t.entities[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if len(a.ID) != len(b.ID) {
			return len(a.ID) > len(b.ID)
		}
		return a.ID > b.ID
	})
	t.ids = ids
}
