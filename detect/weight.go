package detect

import (
	"math"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/catalog"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// WeightDiscrepancy flags POS transactions whose measured weight deviates
// from the catalog weight by more than the tolerance. A SKU missing from
// the catalog is skipped, never flagged.
type WeightDiscrepancy struct {
	cfg config.DetectionConfig
	cat *catalog.Catalog
}

// NewWeightDiscrepancy creates the detector.
func NewWeightDiscrepancy(cfg config.DetectionConfig, cat *catalog.Catalog) *WeightDiscrepancy {
	return &WeightDiscrepancy{cfg: cfg, cat: cat}
}

// Name returns the detector name.
func (w *WeightDiscrepancy) Name() string { return "weight_discrepancy" }

// Detect compares measured against catalog weight, per transaction.
func (w *WeightDiscrepancy) Detect(snap *streams.Snapshot) ([]Candidate, error) {
	if w.cat == nil {
		return nil, nil
	}

	var out []Candidate
	for _, tx := range snap.POS {
		if tx.SKU == "" || tx.WeightG <= 0 {
			continue
		}
		expected, ok := w.cat.Weight(tx.SKU)
		if !ok {
			continue
		}

		diff := math.Abs(tx.WeightG - expected)
		if diff <= w.cfg.WeightToleranceGrams {
			continue
		}

		out = append(out, Candidate{
			Name:       types.EventWeightDiscrepancy,
			StationID:  tx.StationID,
			CustomerID: tx.CustomerID,
			Entity:     tx.SKU,
			Timestamp:  tx.Timestamp,
			Fields: map[string]any{
				"product_sku":     tx.SKU,
				"expected_weight": expected,
				"actual_weight":   tx.WeightG,
				"difference":      diff,
			},
		})
	}

	return out, nil
}
