package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/vadimbarashkov/shortlink/internal/cache"
	"github.com/vadimbarashkov/shortlink/internal/cache/cachetest"
)

type record struct {
	expiresAt     *time.Time
	lastVisitedAt *time.Time
	createdAt     time.Time
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]record
	err     error
}

func (f *fakeStore) remove(match func(record) bool) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	codes := []string{}
	for code, r := range f.records {
		if match(r) {
			codes = append(codes, code)
			delete(f.records, code)
		}
	}
	return codes, nil
}

func (f *fakeStore) RemoveExpired(_ context.Context, now time.Time) ([]string, error) {
	return f.remove(func(r record) bool {
		return r.expiresAt != nil && !r.expiresAt.After(now)
	})
}

func (f *fakeStore) RemoveInactive(_ context.Context, cutoff time.Time) ([]string, error) {
	return f.remove(func(r record) bool {
		if r.lastVisitedAt != nil {
			return !r.lastVisitedAt.After(cutoff)
		}
		return !r.createdAt.After(cutoff)
	})
}

// slowStore holds every sweep until release is closed and records how many
// sweeps ran at the same time.
type slowStore struct {
	release chan struct{}

	mu      sync.Mutex
	active  int
	peak    int
	started int
}

func (s *slowStore) RemoveExpired(context.Context, time.Time) ([]string, error) {
	s.mu.Lock()
	s.active++
	s.started++
	s.peak = max(s.peak, s.active)
	s.mu.Unlock()

	<-s.release

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	return nil, nil
}

func (s *slowStore) RemoveInactive(context.Context, time.Time) ([]string, error) {
	return nil, nil
}

func (s *slowStore) stats() (active, peak, started int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.peak, s.started
}

type SweeperTestSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *fakeStore
	backend *cachetest.Cache
	sweeper *Sweeper
}

func (suite *SweeperTestSuite) SetupSuite() {
	suite.ctx = context.Background()
	suite.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *SweeperTestSuite) SetupSubTest() {
	past := suite.now.Add(-time.Hour)
	future := suite.now.Add(time.Hour)
	old := suite.now.Add(-100 * 24 * time.Hour)
	recent := suite.now.Add(-24 * time.Hour)

	suite.store = &fakeStore{records: map[string]record{
		"exp001": {expiresAt: &past, createdAt: recent},
		"exp002": {expiresAt: &past, createdAt: recent},
		"live01": {expiresAt: &future, createdAt: recent},
		"never1": {createdAt: recent},
		"stale1": {createdAt: old, lastVisitedAt: &old},
		"stale2": {createdAt: old},
		"fresh1": {createdAt: old, lastVisitedAt: &recent},
	}}

	suite.backend = cachetest.New()
	for code := range suite.store.records {
		suite.backend.Put(cache.URLKey(code), []byte("{}"))
	}

	suite.sweeper = New(
		suite.store,
		cache.NewSafe(suite.backend, time.Second, zap.NewNop()),
		WithClock(func() time.Time { return suite.now }),
	)
}

func (suite *SweeperTestSuite) TestSweepExpired() {
	suite.Run("removes from store and cache", func() {
		n, err := suite.sweeper.SweepExpired(suite.ctx)

		suite.NoError(err)
		suite.Equal(2, n)

		for _, code := range []string{"exp001", "exp002"} {
			_, ok := suite.backend.Value(cache.URLKey(code))
			suite.False(ok, code)
		}
		_, ok := suite.backend.Value(cache.URLKey("live01"))
		suite.True(ok)
	})

	suite.Run("idempotent", func() {
		n, err := suite.sweeper.SweepExpired(suite.ctx)
		suite.Require().NoError(err)
		suite.Equal(2, n)

		n, err = suite.sweeper.SweepExpired(suite.ctx)
		suite.NoError(err)
		suite.Zero(n)
	})

	suite.Run("cache failure keeps store deletions", func() {
		suite.backend.SetFailing(true)

		n, err := suite.sweeper.SweepExpired(suite.ctx)

		suite.NoError(err)
		suite.Equal(2, n)
		suite.Len(suite.store.records, 5)
	})

	suite.Run("store failure propagates", func() {
		errDown := errors.New("store down")
		suite.store.err = errDown

		n, err := suite.sweeper.SweepExpired(suite.ctx)

		suite.ErrorIs(err, errDown)
		suite.Zero(n)
	})
}

func (suite *SweeperTestSuite) TestSweepInactive() {
	suite.Run("removes urls idle past the threshold", func() {
		n, err := suite.sweeper.SweepInactive(suite.ctx, 30)

		suite.NoError(err)
		suite.Equal(2, n)

		_, ok := suite.store.records["stale1"]
		suite.False(ok)
		_, ok = suite.store.records["stale2"]
		suite.False(ok)
		_, ok = suite.store.records["fresh1"]
		suite.True(ok)
		_, ok = suite.store.records["never1"]
		suite.True(ok)

		_, ok = suite.backend.Value(cache.URLKey("stale1"))
		suite.False(ok)
	})

	suite.Run("idempotent", func() {
		_, err := suite.sweeper.SweepInactive(suite.ctx, 30)
		suite.Require().NoError(err)

		n, err := suite.sweeper.SweepInactive(suite.ctx, 30)
		suite.NoError(err)
		suite.Zero(n)
	})

	suite.Run("negative threshold", func() {
		_, err := suite.sweeper.SweepInactive(suite.ctx, -1)

		suite.Error(err)
		suite.Len(suite.store.records, 7)
	})
}

func (suite *SweeperTestSuite) TestSchedulerRunOnce() {
	suite.Run("runs both sweeps", func() {
		s := NewScheduler(suite.sweeper, SchedulerConfig{InactiveDays: 30, Timeout: time.Second}, nil)

		report, err := s.RunOnce(suite.ctx)

		suite.NoError(err)
		suite.Equal(Report{Expired: 2, Inactive: 2}, report)
	})

	suite.Run("reports store failure", func() {
		suite.store.err = errors.New("store down")
		s := NewScheduler(suite.sweeper, SchedulerConfig{InactiveDays: 30}, nil)

		_, err := s.RunOnce(suite.ctx)

		suite.Error(err)
	})
}

func (suite *SweeperTestSuite) TestSchedulerStart() {
	suite.Run("invalid schedule", func() {
		s := NewScheduler(suite.sweeper, SchedulerConfig{Schedule: "every now and then"}, nil)

		suite.Error(s.Start(suite.ctx))
	})

	suite.Run("run on start then stop", func() {
		ctx, cancel := context.WithCancel(suite.ctx)
		s := NewScheduler(suite.sweeper, SchedulerConfig{Schedule: "@daily", InactiveDays: 30, RunOnStart: true}, nil)

		done := make(chan error, 1)
		go func() { done <- s.Start(ctx) }()

		suite.Eventually(func() bool {
			suite.store.mu.Lock()
			defer suite.store.mu.Unlock()
			return len(suite.store.records) == 3
		}, time.Second, 10*time.Millisecond)

		cancel()
		suite.NoError(<-done)
	})

	suite.Run("run on start does not overlap scheduled runs", func() {
		store := &slowStore{release: make(chan struct{})}
		sw := New(store, cache.NewSafe(cachetest.New(), time.Second, zap.NewNop()))
		s := NewScheduler(sw, SchedulerConfig{Schedule: "@every 1s", InactiveDays: 30, RunOnStart: true}, nil)

		ctx, cancel := context.WithCancel(suite.ctx)
		done := make(chan error, 1)
		go func() { done <- s.Start(ctx) }()

		suite.Eventually(func() bool {
			active, _, _ := store.stats()
			return active == 1
		}, time.Second, 10*time.Millisecond)

		// Let at least one scheduled tick fire while the first run is held.
		time.Sleep(1500 * time.Millisecond)

		cancel()
		select {
		case <-done:
			suite.Fail("Start returned before the running sweep finished")
		case <-time.After(50 * time.Millisecond):
		}

		close(store.release)
		suite.NoError(<-done)

		active, peak, started := store.stats()
		suite.Zero(active)
		suite.Equal(1, peak)
		suite.Equal(1, started)
	})
}

func TestSweeperTestSuite(t *testing.T) {
	suite.Run(t, new(SweeperTestSuite))
}
