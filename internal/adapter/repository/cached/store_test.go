package cached

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

var errStoreDown = errors.New("store unavailable")

// fakeURLStore is an in-memory urlStore counting reads.
type fakeURLStore struct {
	mu     sync.Mutex
	urls   map[string]*entity.URL
	nextID int64
	reads  int
	now    func() time.Time
	down   bool
	search entity.URLSearch
}

func newFakeURLStore(now func() time.Time) *fakeURLStore {
	return &fakeURLStore{urls: make(map[string]*entity.URL), now: now}
}

func (s *fakeURLStore) Save(_ context.Context, n entity.NewURL) (*entity.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.down {
		return nil, errStoreDown
	}
	if _, ok := s.urls[n.ShortCode]; ok {
		return nil, entity.ErrShortCodeExists
	}

	s.nextID++
	url := &entity.URL{
		ID:          s.nextID,
		ShortCode:   n.ShortCode,
		OriginalURL: n.OriginalURL,
		ExpiresAt:   n.ExpiresAt,
		UserID:      n.UserID,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	s.urls[n.ShortCode] = url

	return clone(url), nil
}

func (s *fakeURLStore) RetrieveByShortCode(_ context.Context, code string) (*entity.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	if s.down {
		return nil, errStoreDown
	}

	url, ok := s.urls[code]
	if !ok {
		return nil, entity.ErrURLNotFound
	}
	return clone(url), nil
}

func (s *fakeURLStore) RecordVisit(_ context.Context, code string, at time.Time) (*entity.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	url, ok := s.urls[code]
	if !ok {
		return nil, entity.ErrURLNotFound
	}
	url.Visits++
	url.LastVisitedAt = &at

	return clone(url), nil
}

func (s *fakeURLStore) Update(_ context.Context, code string, upd entity.URLUpdate) (*entity.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.down {
		return nil, errStoreDown
	}

	url, ok := s.urls[code]
	if !ok {
		return nil, entity.ErrURLNotFound
	}
	if v, ok := upd.OriginalURL.Get(); ok {
		url.OriginalURL = v
	}
	if v, ok := upd.ExpiresAt.Get(); ok {
		url.ExpiresAt = v
	}
	url.UpdatedAt = s.now()

	return clone(url), nil
}

func (s *fakeURLStore) Remove(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.down {
		return errStoreDown
	}
	if _, ok := s.urls[code]; !ok {
		return entity.ErrURLNotFound
	}
	delete(s.urls, code)

	return nil
}

func (s *fakeURLStore) Search(_ context.Context, q entity.URLSearch) ([]*entity.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.search = q

	var res []*entity.URL
	for _, url := range s.urls {
		if strings.Contains(strings.ToLower(url.OriginalURL), strings.ToLower(q.Query)) {
			res = append(res, clone(url))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })

	return res, nil
}

func (s *fakeURLStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func clone(url *entity.URL) *entity.URL {
	c := *url
	return &c
}

// fakeUserStore is an in-memory userStore counting reads.
type fakeUserStore struct {
	mu     sync.Mutex
	users  map[int64]*entity.User
	nextID int64
	reads  int
	now    time.Time
}

func newFakeUserStore(now time.Time) *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]*entity.User), now: now}
}

func (s *fakeUserStore) Save(_ context.Context, n entity.NewUser) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == n.Email {
			return nil, entity.ErrEmailExists
		}
		if u.Username == n.Username {
			return nil, entity.ErrUsernameExists
		}
	}

	s.nextID++
	u := &entity.User{
		ID:           s.nextID,
		Email:        n.Email,
		Username:     n.Username,
		PasswordHash: n.PasswordHash,
		IsActive:     true,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.users[u.ID] = u

	c := *u
	return &c, nil
}

func (s *fakeUserStore) find(match func(*entity.User) bool) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	for _, u := range s.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, entity.ErrUserNotFound
}

func (s *fakeUserStore) RetrieveByEmail(_ context.Context, email string) (*entity.User, error) {
	return s.find(func(u *entity.User) bool { return u.Email == email })
}

func (s *fakeUserStore) RetrieveByUsername(_ context.Context, username string) (*entity.User, error) {
	return s.find(func(u *entity.User) bool { return u.Username == username })
}

func (s *fakeUserStore) Update(_ context.Context, id int64, upd entity.UserUpdate) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	if v, ok := upd.PasswordHash.Get(); ok {
		u.PasswordHash = v
	}
	if v, ok := upd.IsActive.Get(); ok {
		u.IsActive = v
	}

	c := *u
	return &c, nil
}

func (s *fakeUserStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
