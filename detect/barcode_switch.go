package detect

import (
	"math"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/catalog"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/pkg/timestamp"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// BarcodeSwitch flags POS transactions whose scanned SKU differs from the
// SKU independently inferred at the same station: from an RFID read, or
// from product recognition when the model is confident enough.
type BarcodeSwitch struct {
	cfg config.DetectionConfig
	cat *catalog.Catalog
}

// NewBarcodeSwitch creates the detector.
func NewBarcodeSwitch(cfg config.DetectionConfig, cat *catalog.Catalog) *BarcodeSwitch {
	return &BarcodeSwitch{cfg: cfg, cat: cat}
}

// Name returns the detector name.
func (b *BarcodeSwitch) Name() string { return "barcode_switch" }

// Detect cross-checks each POS transaction against RFID and recognition.
func (b *BarcodeSwitch) Detect(snap *streams.Snapshot) ([]Candidate, error) {
	var out []Candidate

	for _, tx := range snap.POS {
		if tx.SKU == "" {
			continue
		}

		actual := b.inferSKU(snap, tx)
		if actual == "" || actual == tx.SKU {
			continue
		}

		scanned := tx.SKU
		if tx.Barcode != "" {
			scanned = tx.Barcode
		}

		scannedPrice := tx.Price
		if p, ok := b.priceOf(scanned); ok {
			scannedPrice = p
		}
		actualPrice, ok := b.priceOf(actual)
		if !ok {
			// Inferred SKU missing from the catalog: skip, not flag.
			continue
		}

		out = append(out, Candidate{
			Name:       types.EventBarcodeSwitching,
			StationID:  tx.StationID,
			CustomerID: tx.CustomerID,
			Entity:     actual,
			Timestamp:  tx.Timestamp,
			Fields: map[string]any{
				"actual_sku":       actual,
				"scanned_barcode":  scanned,
				"scanned_price":    scannedPrice,
				"actual_price":     actualPrice,
				"price_difference": round2(actualPrice - scannedPrice),
			},
		})
	}

	return out, nil
}

// inferSKU determines what was physically at the station around the
// transaction time. RFID is authoritative; recognition is used only above
// the configured confidence.
func (b *BarcodeSwitch) inferSKU(snap *streams.Snapshot, tx *types.POSTransaction) string {
	for _, r := range snap.RFID {
		if r.StationID != tx.StationID || r.SKU == "" {
			continue
		}
		if timestamp.Within(r.Timestamp, tx.Timestamp, b.cfg.CorrelationWindow) {
			return r.SKU
		}
	}
	for _, p := range snap.Recognition {
		if p.StationID != tx.StationID || p.PredictedSKU == "" {
			continue
		}
		if p.Accuracy < b.cfg.MinRecognitionConfidence {
			continue
		}
		if timestamp.Within(p.Timestamp, tx.Timestamp, b.cfg.CorrelationWindow) {
			return p.PredictedSKU
		}
	}
	return ""
}

func (b *BarcodeSwitch) priceOf(skuOrBarcode string) (float64, bool) {
	if b.cat == nil {
		return 0, false
	}
	return b.cat.Price(skuOrBarcode)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
