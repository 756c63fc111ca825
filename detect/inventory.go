package detect

import (
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/catalog"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// InventoryDiscrepancy compares the latest counted inventory against the
// expected quantity: the previous snapshot's count minus POS sell-through
// since that snapshot. With a single snapshot the catalog's initial
// quantity is the baseline. Shrinkage when counted below expected, Overage
// above.
type InventoryDiscrepancy struct {
	cfg config.DetectionConfig
	cat *catalog.Catalog
}

// NewInventoryDiscrepancy creates the detector.
func NewInventoryDiscrepancy(cfg config.DetectionConfig, cat *catalog.Catalog) *InventoryDiscrepancy {
	return &InventoryDiscrepancy{cfg: cfg, cat: cat}
}

// Name returns the detector name.
func (d *InventoryDiscrepancy) Name() string { return "inventory_discrepancy" }

// Detect reconciles the latest snapshot per SKU.
func (d *InventoryDiscrepancy) Detect(snap *streams.Snapshot) ([]Candidate, error) {
	if len(snap.Inventory) == 0 {
		return nil, nil
	}

	latest := snap.Inventory[len(snap.Inventory)-1]

	var baseline map[string]int
	var since time.Time
	if len(snap.Inventory) >= 2 {
		prior := snap.Inventory[len(snap.Inventory)-2]
		baseline = prior.Counts
		since = prior.Timestamp
	}

	var out []Candidate
	for sku, counted := range latest.Counts {
		expected, ok := d.expectedQuantity(sku, baseline)
		if !ok {
			continue
		}
		sold := d.soldBetween(snap.POS, sku, since, latest.Timestamp)
		expected -= sold

		discrepancy := expected - counted
		if discrepancy < 0 {
			discrepancy = -discrepancy
		}
		if discrepancy <= d.cfg.InventoryTolerance {
			continue
		}

		kind := "Shrinkage"
		if counted > expected {
			kind = "Overage"
		}

		out = append(out, Candidate{
			Name:      types.EventInventoryDiscrepancy,
			Entity:    sku,
			Timestamp: latest.Timestamp,
			Fields: map[string]any{
				"SKU":                sku,
				"Expected_Inventory": expected,
				"Actual_Inventory":   counted,
				"Discrepancy":        discrepancy,
				"Type":               kind,
				"Units_Sold":         sold,
			},
		})
	}

	return out, nil
}

// expectedQuantity picks the baseline count for a SKU: the prior snapshot
// when one exists, otherwise the catalog's initial quantity. Unknown SKUs
// are skipped rather than flagged.
func (d *InventoryDiscrepancy) expectedQuantity(sku string, baseline map[string]int) (int, bool) {
	if baseline != nil {
		n, ok := baseline[sku]
		return n, ok
	}
	if d.cat == nil {
		return 0, false
	}
	entry := d.cat.BySKU(sku)
	if entry == nil {
		return 0, false
	}
	return entry.Quantity, true
}

// soldBetween counts POS units of a SKU in (since, until]. A zero since
// counts everything up to until.
func (d *InventoryDiscrepancy) soldBetween(pos []*types.POSTransaction, sku string, since, until time.Time) int {
	sold := 0
	for _, tx := range pos {
		if tx.SKU != sku {
			continue
		}
		if !since.IsZero() && !tx.Timestamp.After(since) {
			continue
		}
		if tx.Timestamp.After(until) {
			continue
		}
		sold++
	}
	return sold
}
