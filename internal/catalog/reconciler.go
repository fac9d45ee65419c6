package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/localsaver/backend/logger"
	pkgerrors "github.com/localsaver/backend/pkg/errors"
	"github.com/localsaver/backend/services/publisher"
)

const keyCacheSize = 1024

// Reconciler merges normalized price observations into the canonical
// catalog. It alone upholds the one-product-per-(name, category)
// invariant: every record is looked up before insert, and records for the
// same key are serialized behind a per-key mutex so concurrent callers
// cannot race a duplicate into existence.
type Reconciler struct {
	store *Store
	pub   publisher.Publisher
	log   *logger.Logger

	// (name, category) key -> product id; ids are immutable and products
	// are never deleted, so entries cannot go stale.
	keyIDs *lru.Cache[string, string]

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewReconciler creates a reconciler over the given store. The publisher
// may be nil, in which case no price events are emitted.
func NewReconciler(store *Store, pub publisher.Publisher) *Reconciler {
	cache, _ := lru.New[string, string](keyCacheSize)
	return &Reconciler{
		store:  store,
		pub:    pub,
		log:    logger.ForReconciler(),
		keyIDs: cache,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Reconcile merges one record into the catalog. It reports whether a new
// catalog entry was created.
func (r *Reconciler) Reconcile(ctx context.Context, rec NormalizedRecord) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, pkgerrors.NewReconcile(rec.Category, "invalid record", err)
	}

	key := rec.Key()
	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()

	existing, err := r.lookup(ctx, key, rec)
	created := false
	var product Product
	switch {
	case err == nil:
		product = *existing
	case errors.Is(err, ErrNotFound):
		product = NewProduct(uuid.NewString(), rec, now)
		created = true
	default:
		return false, pkgerrors.NewStore("lookup product", err)
	}

	oldQuote, hadQuote := QuoteFor(product, rec.Vendor)

	merged := ApplyQuote(product, rec, now)
	quote, _ := QuoteFor(merged, rec.Vendor)
	point := merged.PriceHistory[len(merged.PriceHistory)-1]

	if err := r.store.ApplyReconciliation(ctx, merged, quote, point, created); err != nil {
		return false, pkgerrors.NewStore("persist reconciliation", err)
	}
	r.keyIDs.Add(key, merged.ID)

	r.publishEvent(merged, rec, oldQuote, hadQuote, now)

	return created, nil
}

// ReconcileAll merges a batch of records, isolating failures per record: a
// failed record is logged and skipped, the rest of the batch proceeds.
func (r *Reconciler) ReconcileAll(ctx context.Context, recs []NormalizedRecord) (succeeded, failed int) {
	for _, rec := range recs {
		if _, err := r.Reconcile(ctx, rec); err != nil {
			failed++
			r.log.Error().
				Err(err).
				Str("name", rec.Name).
				Str("category", rec.Category).
				Str("vendor", rec.Vendor).
				Msg("Record reconciliation failed")
			continue
		}
		succeeded++
	}
	return succeeded, failed
}

func (r *Reconciler) lookup(ctx context.Context, key string, rec NormalizedRecord) (*Product, error) {
	if id, ok := r.keyIDs.Get(key); ok {
		p, err := r.store.GetProduct(ctx, id)
		if err == nil {
			return p, nil
		}
		r.keyIDs.Remove(key)
	}
	return r.store.FindByKey(ctx, rec.Name, rec.Category)
}

func (r *Reconciler) publishEvent(p Product, rec NormalizedRecord, oldQuote VendorQuote, hadQuote bool, now time.Time) {
	if r.pub == nil {
		return
	}
	event := PriceEvent{
		ProductID:  p.ID,
		Name:       p.Name,
		Category:   p.Category,
		Vendor:     rec.Vendor,
		Price:      rec.Price,
		InStock:    rec.InStock,
		ObservedAt: now,
	}
	if hadQuote && oldQuote.Price != rec.Price {
		event.OldPrice = oldQuote.Price
	}
	data, err := json.Marshal(event)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to encode price event")
		return
	}
	if err := r.pub.Publish(rec.Vendor, data); err != nil {
		// Alert delivery is best-effort; the catalog write already landed.
		r.log.Error().Err(err).Str("vendor", rec.Vendor).Msg("Failed to publish price event")
	}
}

func (r *Reconciler) keyLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}
