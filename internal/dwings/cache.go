// Package dwings implements the DWINGS Linker (C5): resolving a movement
// to its best-matching invoice/guarantee/payment references, and the
// process-wide dataset cache that backs it.
//
// The cache is grounded on the preload-once-reuse-across-records pattern
// of BaseSyncService.PreloadRecords in sync/base_sync.go, generalized
// from a per-sync-run in-memory map to a process-wide,
// generation-versioned cache with coalesced concurrent loads. The
// coalescing idiom is new to this domain and is grounded on
// golang.org/x/sync/singleflight, previously only an indirect module
// dependency and promoted to direct for this purpose.
package dwings

import (
	"fmt"
	"sync"

	"github.com/ambre-dwings/reconcile/internal/model"
	"golang.org/x/sync/singleflight"
)

// Dataset is one loaded snapshot of the DWINGS reference tables.
type Dataset struct {
	Invoices   []model.DWINGSInvoice
	Guarantees []model.DWINGSGuarantee
}

// Loader fetches a fresh Dataset from a data source path (a file path, a
// connection string, whatever the deployment's DWINGS export uses).
type Loader func(path string) (Dataset, error)

// Snapshot is an indexed, read-only view of a Dataset, held for the
// duration of one import. Index maps are built once at load time so
// Resolve never scans the full dataset per movement.
type Snapshot struct {
	generation uint64

	invoicesByBGPMT map[string]model.DWINGSInvoice
	invoicesByToken map[string][]model.DWINGSInvoice // indexed by invoice_id/sender_ref/receiver_ref/business_case_ref
	invoicesByGuarantee map[string][]model.DWINGSInvoice
	guaranteesByID  map[string]model.DWINGSGuarantee
}

func newSnapshot(generation uint64, ds Dataset) *Snapshot {
	s := &Snapshot{
		generation:          generation,
		invoicesByBGPMT:     make(map[string]model.DWINGSInvoice),
		invoicesByToken:     make(map[string][]model.DWINGSInvoice),
		invoicesByGuarantee: make(map[string][]model.DWINGSInvoice),
		guaranteesByID:      make(map[string]model.DWINGSGuarantee),
	}

	for _, inv := range ds.Invoices {
		if inv.BGPMT != "" {
			s.invoicesByBGPMT[inv.BGPMT] = inv
		}
		for _, token := range []string{inv.InvoiceID, inv.SenderReference, inv.ReceiverReference, inv.BusinessCaseRef} {
			if token == "" {
				continue
			}
			s.invoicesByToken[token] = append(s.invoicesByToken[token], inv)
		}
		if inv.BusinessCaseID != "" {
			s.invoicesByGuarantee[inv.BusinessCaseID] = append(s.invoicesByGuarantee[inv.BusinessCaseID], inv)
		}
	}
	for _, g := range ds.Guarantees {
		s.guaranteesByID[g.GuaranteeID] = g
	}

	return s
}

// Generation reports the cache generation this snapshot was built from,
// useful for diagnostics and tests asserting invalidation took effect.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Cache is a process-wide, lazily-loaded dataset cache keyed by data
// source path. Concurrent loads of the same path are coalesced through a
// singleflight.Group; explicit Invalidate calls bump a per-path
// generation counter so readers that already hold a Snapshot are
// unaffected until they call Snapshot again.
type Cache struct {
	loader Loader

	mu      sync.Mutex
	entries map[string]*cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	generation uint64
	snapshot   *Snapshot
}

// NewCache constructs a Cache backed by loader.
func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader, entries: make(map[string]*cacheEntry)}
}

// Snapshot returns the current Snapshot for path, loading it if absent.
// Concurrent callers for the same path share one load.
func (c *Cache) Snapshot(path string) (*Snapshot, error) {
	c.mu.Lock()
	if entry, ok := c.entries[path]; ok && entry.snapshot != nil {
		c.mu.Unlock()
		return entry.snapshot, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(path, func() (any, error) {
		c.mu.Lock()
		if entry, ok := c.entries[path]; ok && entry.snapshot != nil {
			c.mu.Unlock()
			return entry.snapshot, nil
		}
		c.mu.Unlock()

		ds, err := c.loader(path)
		if err != nil {
			return nil, fmt.Errorf("loading dwings dataset from %s: %w", path, err)
		}

		c.mu.Lock()
		entry := c.entries[path]
		generation := uint64(1)
		if entry != nil {
			generation = entry.generation + 1
		}
		snapshot := newSnapshot(generation, ds)
		c.entries[path] = &cacheEntry{generation: generation, snapshot: snapshot}
		c.mu.Unlock()

		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate drops the cached snapshot for path, keeping its generation
// counter. The next Snapshot call for that path triggers a fresh,
// coalesced load and produces a new generation; Snapshots already handed
// out to in-flight readers remain valid for their duration, per spec.md
// section 4.5's "invalidated explicitly after an import completes."
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	if entry, ok := c.entries[path]; ok {
		c.entries[path] = &cacheEntry{generation: entry.generation}
	}
	c.mu.Unlock()
}
