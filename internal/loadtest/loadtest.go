// Package loadtest provides load testing utilities for the mirror database.
//
// It simulates many concurrent readers querying the mirror while syncs
// write to it, to validate that the store sustains dashboard and CLI
// traffic without lock contention or torn reads.
package loadtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mirrorkit/hubmirror/internal/schema"
	"github.com/mirrorkit/hubmirror/internal/store"
)

// TestMirror is a populated mirror database for load testing.
type TestMirror struct {
	DB                 *store.DB
	CompanyExternalIDs []string
	ContactExternalIDs []string
}

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
}

// CreateTestMirror creates and populates a mirror database.
//
// Every company gets contactsPerCompany contacts, and one extra contact
// per ten companies is left without an association so reads cover the
// unlinked path too.
func CreateTestMirror(dbPath string, numCompanies, contactsPerCompany int) (*TestMirror, error) {
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Widen the pool past the defaults; load tests run far more
	// concurrent readers than a normal process.
	db.RawDB().SetMaxOpenConns(150)
	db.RawDB().SetMaxIdleConns(50)
	db.RawDB().SetConnMaxLifetime(10 * time.Minute)

	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	tm := &TestMirror{DB: db}

	for i := 0; i < numCompanies; i++ {
		externalID := fmt.Sprintf("load-co-%05d", i)
		company, err := db.UpsertCompany(&schema.Company{
			ExternalID: externalID,
			Name:       fmt.Sprintf("Load Company %d", i),
			Domain:     fmt.Sprintf("load-%d.test", i),
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to insert company %s: %w", externalID, err)
		}
		tm.CompanyExternalIDs = append(tm.CompanyExternalIDs, externalID)

		for j := 0; j < contactsPerCompany; j++ {
			contactExternal := fmt.Sprintf("load-ct-%05d-%02d", i, j)
			if _, err := db.UpsertContact(&schema.Contact{
				ExternalID: contactExternal,
				FirstName:  "Load",
				LastName:   fmt.Sprintf("Contact %d-%d", i, j),
				Email:      fmt.Sprintf("load-%d-%d@load.test", i, j),
				CompanyID:  company.ID,
			}); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to insert contact %s: %w", contactExternal, err)
			}
			tm.ContactExternalIDs = append(tm.ContactExternalIDs, contactExternal)
		}

		if i%10 == 0 {
			contactExternal := fmt.Sprintf("load-ct-%05d-solo", i)
			if _, err := db.UpsertContact(&schema.Contact{
				ExternalID: contactExternal,
				Email:      fmt.Sprintf("solo-%d@load.test", i),
			}); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to insert contact %s: %w", contactExternal, err)
			}
			tm.ContactExternalIDs = append(tm.ContactExternalIDs, contactExternal)
		}
	}

	return tm, nil
}

// Close closes the test database connection.
func (tm *TestMirror) Close() error {
	if tm.DB != nil {
		return tm.DB.Close()
	}
	return nil
}

// RunConcurrentReaders simulates N concurrent clients reading the mirror.
//
// Each reader performs queriesPerReader lookups, alternating between
// company-by-external-id and contact list pages, recording latency for
// each. Returns aggregated latency statistics.
func (tm *TestMirror) RunConcurrentReaders(numReaders, queriesPerReader int) (*LatencyStats, error) {
	var wg sync.WaitGroup
	resultsChan := make(chan []time.Duration, numReaders)
	errorsChan := make(chan error, numReaders)

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()

			ctx := context.Background()
			durations := make([]time.Duration, 0, queriesPerReader)

			for j := 0; j < queriesPerReader; j++ {
				start := time.Now()

				var err error
				if j%2 == 0 {
					externalID := tm.CompanyExternalIDs[(readerID+j)%len(tm.CompanyExternalIDs)]
					_, err = tm.DB.FindCompanyByExternalIDContext(ctx, externalID)
				} else {
					_, err = tm.DB.ListContactsContext(ctx, 50, (readerID+j)%100)
				}
				durations = append(durations, time.Since(start))

				if err != nil {
					errorsChan <- fmt.Errorf("reader %d query %d failed: %w", readerID, j, err)
					return
				}
			}

			resultsChan <- durations
		}(i)
	}

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	errorCount := 0
	for range errorsChan {
		errorCount++
	}

	var allDurations []time.Duration
	for durations := range resultsChan {
		allDurations = append(allDurations, durations...)
	}

	if len(allDurations) == 0 {
		return nil, fmt.Errorf("no successful queries completed")
	}

	stats := computeLatencyStats(allDurations)
	stats.Errors = errorCount
	return stats, nil
}

// VerifyConsistentReads runs readers against a writer for the given duration.
//
// Readers verify every contact they see either has no company reference or
// references a resolvable company, while the writer keeps re-upserting the
// same records. Any torn read or constraint violation fails the run.
func (tm *TestMirror) VerifyConsistentReads(numReaders int, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	errorsChan := make(chan error, numReaders+1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		for ctx.Err() == nil {
			externalID := tm.CompanyExternalIDs[i%len(tm.CompanyExternalIDs)]
			_, err := tm.DB.UpsertCompany(&schema.Company{
				ExternalID: externalID,
				Name:       fmt.Sprintf("Rewritten %d", i),
				Domain:     "rewrite.test",
			})
			if err != nil && ctx.Err() == nil {
				errorsChan <- fmt.Errorf("writer upsert failed: %w", err)
				return
			}
			i++
			time.Sleep(time.Millisecond)
		}
	}()

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()

			for ctx.Err() == nil {
				contacts, err := tm.DB.ListContactsContext(ctx, 50, 0)
				if err != nil {
					if ctx.Err() == nil {
						errorsChan <- fmt.Errorf("reader %d list failed: %w", readerID, err)
					}
					return
				}

				for _, contact := range contacts {
					if contact.ID == "" || contact.ExternalID == "" {
						errorsChan <- fmt.Errorf("reader %d saw contact with empty id", readerID)
						return
					}
					if contact.CompanyID == "" {
						continue
					}
					if _, err := tm.DB.GetContactContext(ctx, contact.ID); err != nil && ctx.Err() == nil {
						errorsChan <- fmt.Errorf("reader %d reread failed: %w", readerID, err)
						return
					}
				}

				time.Sleep(time.Millisecond)
			}
		}(i)
	}

	wg.Wait()
	close(errorsChan)

	for err := range errorsChan {
		if err != nil {
			return err
		}
	}
	return nil
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         sum / time.Duration(len(sorted)),
		P50:          sorted[len(sorted)*50/100],
		P95:          sorted[len(sorted)*95/100],
		P99:          sorted[len(sorted)*99/100],
		TotalQueries: len(sorted),
	}
}

// PrintStats formats and prints latency statistics.
func (s *LatencyStats) PrintStats() {
	fmt.Printf("Latency Statistics:\n")
	fmt.Printf("  Total Queries: %d\n", s.TotalQueries)
	fmt.Printf("  Errors:        %d\n", s.Errors)
	fmt.Printf("  Min:           %v\n", s.Min)
	fmt.Printf("  P50 (Median):  %v\n", s.P50)
	fmt.Printf("  Mean:          %v\n", s.Mean)
	fmt.Printf("  P95:           %v\n", s.P95)
	fmt.Printf("  P99:           %v\n", s.P99)
	fmt.Printf("  Max:           %v\n", s.Max)
}
