package internal

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/application/service"
	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	domainsvc "github.com/damon-houk/nbp-currency-exchange/internal/domain/service"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/db"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowSource publishes a fixed rate on weekdays and counts fetches
type slowSource struct {
	delay   time.Duration
	fetches atomic.Int64
}

func (s *slowSource) FetchRate(ctx context.Context, date time.Time, currency entity.Currency) (decimal.Decimal, error) {
	s.fetches.Add(1)
	time.Sleep(s.delay)

	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return decimal.Zero, domainsvc.ErrNoRatePublished
	}
	return decimal.RequireFromString("3.5"), nil
}

func TestConcurrentResolution(t *testing.T) {
	// Skip in short mode or CI
	if testing.Short() {
		t.Skip("Skipping performance test in short mode")
	}

	dbPath, err := os.MkdirTemp("", "badger-perf-test")
	require.NoError(t, err)
	defer os.RemoveAll(dbPath)

	badgerDB, err := db.OpenBadger(dbPath)
	require.NoError(t, err)
	defer badgerDB.Close()

	log := logger.NewJSONLogger(nil, logger.FatalLevel)
	source := &slowSource{delay: 20 * time.Millisecond}
	resolver := service.NewRateResolver(db.NewBadgerRateStore(badgerDB), source, log, nil)
	conversionService := service.NewConversionService(resolver, log, nil)

	monday := time.Date(2010, 1, 11, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2010, 1, 10, 0, 0, 0, 0, time.UTC)
	concurrency := 20

	t.Run("Same pair resolved concurrently", func(t *testing.T) {
		startTime := time.Now()

		var wg sync.WaitGroup
		results := make(chan float64, concurrency)
		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				amount, err := conversionService.Convert(context.Background(), 1000, entity.USD, entity.PLN, monday)
				if assert.NoError(t, err) {
					results <- amount
				}
			}()
		}
		wg.Wait()
		close(results)

		for amount := range results {
			assert.Equal(t, 3500.0, amount)
		}

		fetched := source.fetches.Load()
		assert.GreaterOrEqual(t, fetched, int64(1))
		assert.LessOrEqual(t, fetched, int64(concurrency))

		// Once stored, the pair is served without fetching
		_, err := conversionService.Convert(context.Background(), 1, entity.PLN, entity.USD, monday)
		require.NoError(t, err)
		assert.Equal(t, fetched, source.fetches.Load())

		t.Logf("Concurrent resolution: %d requests in %v with %d fetches",
			concurrency, time.Since(startTime), fetched)
	})

	t.Run("Unpublished pair resolved concurrently", func(t *testing.T) {
		before := source.fetches.Load()

		var wg sync.WaitGroup
		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := resolver.Resolve(context.Background(), sunday, entity.EUR)
				assert.True(t, errors.Is(err, entity.ErrRateUnavailable))
			}()
		}
		wg.Wait()

		fetched := source.fetches.Load() - before
		assert.GreaterOrEqual(t, fetched, int64(1))

		_, err := resolver.Resolve(context.Background(), sunday, entity.EUR)
		assert.ErrorIs(t, err, entity.ErrRateUnavailable)
		assert.Equal(t, before+fetched, source.fetches.Load())
	})

	t.Run("Throughput of cached lookups", func(t *testing.T) {
		startTime := time.Now()
		requests := 1000

		var wg sync.WaitGroup
		perWorker := requests / concurrency
		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					if _, err := resolver.Resolve(context.Background(), monday, entity.USD); err != nil {
						t.Errorf("Error resolving rate: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()

		duration := time.Since(startTime)
		t.Logf("Cached lookups: %d in %v (%.2f req/sec)",
			requests, duration, float64(requests)/duration.Seconds())
	})
}
