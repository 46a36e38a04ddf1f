package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/sensorboard/internal/adapters/repository"
	service "github.com/okian/sensorboard/internal/app"
	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/internal/domain/window"
)

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// memCache is a cache.Latest held in memory.
type memCache struct {
	mu   sync.Mutex
	r    model.Reading
	ok   bool
	sets int
	fail error
}

func (c *memCache) Get(context.Context) (model.Reading, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return model.Reading{}, false, c.fail
	}
	return c.r, c.ok, nil
}

func (c *memCache) Set(_ context.Context, r model.Reading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.r, c.ok = r, true
	c.sets++
	return nil
}

func (c *memCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ok = false
	return nil
}

func (c *memCache) Close() error { return nil }

// recorder is a publisher.Publisher that records what it is given.
type recorder struct {
	mu   sync.Mutex
	ids  []int64
	fail error
}

func (p *recorder) Publish(_ context.Context, r model.Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.ids = append(p.ids, r.ID)
	return nil
}

func (p *recorder) Close() error { return nil }

func at(d time.Duration) time.Time { return now.Add(-d) }

func TestService_Ingest(t *testing.T) {
	Convey("Given a service with a cache and a publisher", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithClock(clock))
		c := &memCache{}
		p := &recorder{}
		svc := service.New(store, service.WithClock(clock), service.WithCache(c), service.WithPublisher(p))

		Convey("When a valid reading is ingested", func() {
			r, err := svc.Ingest(ctx, model.Reading{Value: 11.4, Mode: model.Mode0.Ptr(), Source: "127.0.0.1"})
			So(err, ShouldBeNil)

			Convey("Then it is stored, cached and published", func() {
				So(r.ID, ShouldEqual, 1)
				So(r.Timestamp.Equal(now), ShouldBeTrue)
				n, _ := store.Count(ctx, repository.Filter{})
				So(n, ShouldEqual, 1)
				So(c.r.ID, ShouldEqual, r.ID)
				So(p.ids, ShouldResemble, []int64{1})
			})
		})

		Convey("When invalid readings are ingested", func() {
			_, err := svc.Ingest(ctx, model.Reading{Value: 50.01})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			_, err = svc.Ingest(ctx, model.Reading{Value: 5, Mode: model.Mode(2).Ptr()})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

			Convey("Then nothing reaches the store or the side channels", func() {
				n, _ := store.Count(ctx, repository.Filter{})
				So(n, ShouldEqual, 0)
				So(c.sets, ShouldEqual, 0)
				So(p.ids, ShouldBeEmpty)
			})
		})

		Convey("When a backdated reading follows a newer one", func() {
			_, err := svc.Ingest(ctx, model.Reading{Value: 20})
			So(err, ShouldBeNil)
			_, err = svc.Ingest(ctx, model.Reading{Value: 30, Timestamp: at(time.Hour)})
			So(err, ShouldBeNil)

			Convey("Then the cache keeps the newer reading", func() {
				latest, ok, err := svc.Latest(ctx)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(latest.Value, ShouldEqual, 20)
			})
		})

		Convey("When the side channels fail", func() {
			c.fail = errors.New("redis down")
			p.fail = errors.New("broker down")
			r, err := svc.Ingest(ctx, model.Reading{Value: 3})

			Convey("Then the reading is still stored", func() {
				So(err, ShouldBeNil)
				So(r.ID, ShouldEqual, 1)
				latest, ok, err := svc.Latest(ctx)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(latest.ID, ShouldEqual, 1)
			})
		})
	})

	Convey("Given concurrent ingestion", t, func() {
		ctx := context.Background()
		p := &recorder{}
		svc := service.New(repository.NewMemoryStore(), service.WithPublisher(p))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					_, _ = svc.Ingest(ctx, model.Reading{Value: 1})
				}
			}()
		}
		wg.Wait()

		Convey("Then readings are published in id order", func() {
			So(len(p.ids), ShouldEqual, 200)
			for i, id := range p.ids {
				So(id, ShouldEqual, int64(i+1))
			}
		})
	})
}

// gatedStore pauses the first Latest call after the store read until
// release is closed.
type gatedStore struct {
	repository.Store
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func (g *gatedStore) Latest(ctx context.Context) (model.Reading, error) {
	r, err := g.Store.Latest(ctx)
	g.once.Do(func() {
		close(g.reached)
		<-g.release
	})
	return r, err
}

func TestService_LatestWarmUpRace(t *testing.T) {
	Convey("Given a cold cache and a store holding one reading", t, func() {
		ctx := context.Background()
		mem := repository.NewMemoryStore(repository.WithClock(clock))
		_, err := mem.Append(ctx, model.Reading{Value: 10, Timestamp: at(time.Minute)})
		So(err, ShouldBeNil)

		store := &gatedStore{Store: mem, reached: make(chan struct{}), release: make(chan struct{})}
		c := &memCache{}
		svc := service.New(store, service.WithClock(clock), service.WithCache(c))

		Convey("When an ingest lands while Latest fills the cache", func() {
			warmed := make(chan struct{})
			go func() {
				defer close(warmed)
				_, _, _ = svc.Latest(ctx)
			}()
			<-store.reached

			ingested := make(chan model.Reading, 1)
			go func() {
				r, _ := svc.Ingest(ctx, model.Reading{Value: 42})
				ingested <- r
			}()
			time.Sleep(20 * time.Millisecond)
			close(store.release)
			<-warmed
			stored := <-ingested

			Convey("Then the new reading wins", func() {
				So(stored.ID, ShouldEqual, 2)
				latest, ok, err := svc.Latest(ctx)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(latest.ID, ShouldEqual, 2)
				So(latest.Value, ShouldEqual, 42)
			})
		})
	})
}

func TestService_Page(t *testing.T) {
	Convey("Given 250 stored readings", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithClock(clock))
		svc := service.New(store, service.WithClock(clock), service.WithPaging(100, 120))
		for i := 0; i < 250; i++ {
			_, err := svc.Ingest(ctx, model.Reading{Value: float64(i % 50), Timestamp: at(time.Duration(250-i) * time.Minute)})
			So(err, ShouldBeNil)
		}

		Convey("Then the first page holds the newest readings", func() {
			pg, err := svc.Page(ctx, 1, 0)
			So(err, ShouldBeNil)
			So(pg.PerPage, ShouldEqual, 100)
			So(pg.Total, ShouldEqual, 250)
			So(pg.Pages, ShouldEqual, 3)
			So(len(pg.Readings), ShouldEqual, 100)
			So(pg.Readings[0].ID, ShouldEqual, 250)
		})

		Convey("Then per_page is capped", func() {
			pg, err := svc.Page(ctx, 1, 5000)
			So(err, ShouldBeNil)
			So(pg.PerPage, ShouldEqual, 120)
		})

		Convey("Then the last page is partial and the next is not found", func() {
			pg, err := svc.Page(ctx, 3, 100)
			So(err, ShouldBeNil)
			So(len(pg.Readings), ShouldEqual, 50)
			So(pg.Readings[49].ID, ShouldEqual, 1)

			_, err = svc.Page(ctx, 4, 100)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then page zero is invalid", func() {
			_, err := svc.Page(ctx, 0, 10)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})

	Convey("Given an empty store", t, func() {
		svc := service.New(repository.NewMemoryStore())
		pg, err := svc.Page(context.Background(), 1, 10)
		So(err, ShouldBeNil)
		So(pg.Total, ShouldEqual, 0)
		So(pg.Readings, ShouldBeEmpty)
	})
}

func TestService_Query(t *testing.T) {
	Convey("Given readings spread over two months", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithClock(clock))
		svc := service.New(store, service.WithClock(clock))
		ages := []time.Duration{
			90 * 24 * time.Hour, // outside every window
			30 * 24 * time.Hour, // exactly on the month boundary
			6 * 24 * time.Hour,
			23 * time.Hour,
			30 * time.Minute,
			0,
		}
		for i, age := range ages {
			mode := model.Mode(i % 2)
			_, err := svc.Ingest(ctx, model.Reading{Value: float64(10 + i), Mode: &mode, Timestamp: at(age)})
			So(err, ShouldBeNil)
		}

		Convey("Then each window counts its readings with inclusive bounds", func() {
			want := map[window.Window]int{window.Hour: 2, window.Day: 3, window.Week: 4, window.Month: 5}
			for w, n := range want {
				rs, err := svc.Query(ctx, window.Spec{Window: w})
				So(err, ShouldBeNil)
				So(len(rs), ShouldEqual, n)
			}
		})

		Convey("Then shorter windows select subsets of longer ones", func() {
			ids := func(rs []model.Reading) map[int64]bool {
				m := make(map[int64]bool, len(rs))
				for _, r := range rs {
					m[r.ID] = true
				}
				return m
			}
			day, err := svc.Query(ctx, window.Spec{Window: window.Day})
			So(err, ShouldBeNil)
			week, err := svc.Query(ctx, window.Spec{Window: window.Week})
			So(err, ShouldBeNil)
			all, err := store.List(ctx, repository.Filter{})
			So(err, ShouldBeNil)

			weekIDs, allIDs := ids(week), ids(all)
			So(len(day), ShouldBeLessThan, len(week))
			So(len(week), ShouldBeLessThan, len(all))
			for _, r := range day {
				So(weekIDs, ShouldContainKey, r.ID)
			}
			for _, r := range week {
				So(allIDs, ShouldContainKey, r.ID)
			}
		})

		Convey("Then results are ascending", func() {
			rs, _ := svc.Query(ctx, window.Spec{Window: window.Month})
			for i := 1; i < len(rs); i++ {
				So(rs[i-1].Timestamp.After(rs[i].Timestamp), ShouldBeFalse)
			}
		})

		Convey("Then the mode filter applies", func() {
			rs, err := svc.Query(ctx, window.Spec{Window: window.Week, Mode: model.Mode1.Ptr()})
			So(err, ShouldBeNil)
			So(len(rs), ShouldEqual, 2)
		})

		Convey("Then explicit ranges work", func() {
			rg, err := window.NewRange(at(7*24*time.Hour), at(time.Hour))
			So(err, ShouldBeNil)
			rs, err := svc.Query(ctx, window.Spec{Range: rg})
			So(err, ShouldBeNil)
			So(len(rs), ShouldEqual, 2)
		})
	})

	Convey("Given an empty store", t, func() {
		svc := service.New(repository.NewMemoryStore())
		rs, err := svc.Query(context.Background(), window.Spec{Window: window.Hour})
		So(err, ShouldBeNil)
		So(rs, ShouldBeEmpty)
	})
}

func TestService_Aggregates(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		svc := service.New(repository.NewMemoryStore(), service.WithClock(clock))

		_, ok, err := svc.Latest(ctx)
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)
		_, ok, err = svc.DailyAverage(ctx)
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)
		_, ok, err = svc.Trend(ctx, window.Day)
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)

		st, err := svc.Stats(ctx, window.Day)
		So(err, ShouldBeNil)
		So(st.Latest, ShouldBeNil)
		So(st.DailyAverage, ShouldBeNil)
		So(st.TrendPercent, ShouldBeNil)
		So(st.Summary.Count, ShouldEqual, 0)
	})

	Convey("Given readings in today and yesterday", t, func() {
		ctx := context.Background()
		c := &memCache{}
		svc := service.New(repository.NewMemoryStore(repository.WithClock(clock)), service.WithClock(clock), service.WithCache(c))
		for _, r := range []model.Reading{
			{Value: 10, Timestamp: at(36 * time.Hour)},
			{Value: 10, Timestamp: at(24 * time.Hour)}, // boundary: current period only
			{Value: 20, Timestamp: at(2 * time.Hour)},
			{Value: 30, Timestamp: at(time.Hour)},
		} {
			_, err := svc.Ingest(ctx, r)
			So(err, ShouldBeNil)
		}

		Convey("Then the daily average covers the inclusive day window", func() {
			avg, ok, err := svc.DailyAverage(ctx)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(avg, ShouldEqual, 20)
		})

		Convey("Then the trend compares against the prior day", func() {
			pct, ok, err := svc.Trend(ctx, window.Day)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(pct, ShouldAlmostEqual, 100, 1e-9)
		})

		Convey("Then latest falls back to the store on a cache miss", func() {
			So(c.Invalidate(ctx), ShouldBeNil)
			r, ok, err := svc.Latest(ctx)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(r.Value, ShouldEqual, 30)
			So(c.ok, ShouldBeTrue)
		})

		Convey("Then stats bundle everything", func() {
			st, err := svc.Stats(ctx, window.Day)
			So(err, ShouldBeNil)
			So(st.Latest.Value, ShouldEqual, 30)
			So(*st.DailyAverage, ShouldEqual, 20)
			So(*st.TrendPercent, ShouldAlmostEqual, 100, 1e-9)
			So(st.Summary.Count, ShouldEqual, 3)
			So(*st.Summary.Max, ShouldEqual, 30)
		})
	})

	Convey("Given a prior period whose mean is zero", t, func() {
		ctx := context.Background()
		svc := service.New(repository.NewMemoryStore(), service.WithClock(clock))
		_, _ = svc.Ingest(ctx, model.Reading{Value: 0, Timestamp: at(30 * time.Hour)})
		_, _ = svc.Ingest(ctx, model.Reading{Value: 5, Timestamp: at(time.Hour)})

		_, ok, err := svc.Trend(ctx, window.Day)
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)
	})
}

func TestService_Close(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := service.New(repository.NewMemoryStore())
		So(svc.Ping(ctx), ShouldBeNil)
		So(svc.Close(), ShouldBeNil)
		So(svc.Ping(ctx), ShouldNotBeNil)
	})
}
