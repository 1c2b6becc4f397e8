package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goskinstore/internal/domain/model"
	"github.com/bigkaa/goskinstore/internal/repository"
)

type fakeUsers struct {
	byUUID map[uuid.UUID]*model.User
	calls  int
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byUUID: make(map[uuid.UUID]*model.User)}
	for _, u := range users {
		f.byUUID[u.UUID] = u
	}
	return f
}

func (f *fakeUsers) GetOrCreate(_ context.Context, id uuid.UUID, name string) (*model.User, error) {
	if u, ok := f.byUUID[id]; ok {
		return u, nil
	}
	u := &model.User{ID: int64(len(f.byUUID) + 1), UUID: id, Name: name}
	f.byUUID[id] = u
	return u, nil
}

func (f *fakeUsers) GetByUUID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.calls++
	if u, ok := f.byUUID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByUUIDs(_ context.Context, ids []uuid.UUID) ([]*model.User, error) {
	var users []*model.User
	for _, id := range ids {
		if u, ok := f.byUUID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func newProfileFixture(t *testing.T, users *fakeUsers, textures *fakeTextures) (*ProfileService, *ProfileCache) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := NewProfileCache(16, time.Minute)
	return NewProfileService(users, textures, cache, logger), cache
}

func TestProfileGet(t *testing.T) {
	user := &model.User{ID: 1, UUID: uuid.New(), Name: "Steve"}
	textures := &fakeTextures{active: map[int64]map[string]*model.Texture{
		1: {"minecraft:skin": {ID: 10, UserID: 1, Type: "minecraft:skin", Hash: "abc"}},
	}}
	svc, _ := newProfileFixture(t, newFakeUsers(user), textures)

	profile, err := svc.Get(context.Background(), user.UUID, nil)
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if profile.User.Name != "Steve" {
		t.Errorf("User.Name = %q, ожидался Steve", profile.User.Name)
	}
	if profile.Textures["minecraft:skin"].Hash != "abc" {
		t.Errorf("Textures = %+v", profile.Textures)
	}
}

func TestProfileGet_NotFound(t *testing.T) {
	svc, _ := newProfileFixture(t, newFakeUsers(), &fakeTextures{})

	if _, err := svc.Get(context.Background(), uuid.New(), nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, ожидался ErrNotFound", err)
	}
}

func TestProfileGet_CachesCurrent(t *testing.T) {
	user := &model.User{ID: 1, UUID: uuid.New(), Name: "Steve"}
	users := newFakeUsers(user)
	svc, _ := newProfileFixture(t, users, &fakeTextures{})

	for i := 0; i < 3; i++ {
		if _, err := svc.Get(context.Background(), user.UUID, nil); err != nil {
			t.Fatalf("Get() #%d ошибка: %v", i, err)
		}
	}
	if users.calls != 1 {
		t.Errorf("обращений к БД %d, ожидалось 1 (кеш)", users.calls)
	}

	// исторический срез мимо кеша
	at := time.Now().Add(-time.Hour)
	if _, err := svc.Get(context.Background(), user.UUID, &at); err != nil {
		t.Fatalf("Get(at) ошибка: %v", err)
	}
	if users.calls != 2 {
		t.Errorf("исторический запрос не пошёл в БД (вызовов %d)", users.calls)
	}
}

func TestProfileGetBulk_SkipsUnknown(t *testing.T) {
	u1 := &model.User{ID: 1, UUID: uuid.New(), Name: "Steve"}
	u2 := &model.User{ID: 2, UUID: uuid.New(), Name: "Alex"}
	svc, _ := newProfileFixture(t, newFakeUsers(u1, u2), &fakeTextures{})

	profiles, err := svc.GetBulk(context.Background(), []uuid.UUID{u1.UUID, uuid.New(), u2.UUID})
	if err != nil {
		t.Fatalf("GetBulk() ошибка: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("профилей %d, ожидалось 2 (неизвестные UUID пропускаются)", len(profiles))
	}
}

func TestProfileGetHistory_NotFound(t *testing.T) {
	svc, _ := newProfileFixture(t, newFakeUsers(), &fakeTextures{})

	if _, err := svc.GetHistory(context.Background(), uuid.New(), 0, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, ожидался ErrNotFound", err)
	}
}
