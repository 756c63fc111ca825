package detect

import (
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/pkg/timestamp"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// ScannerAvoidance flags RFID reads in the exit zone with no matching POS
// transaction at the same station within the correlation window.
type ScannerAvoidance struct {
	cfg config.DetectionConfig
}

// NewScannerAvoidance creates the detector.
func NewScannerAvoidance(cfg config.DetectionConfig) *ScannerAvoidance {
	return &ScannerAvoidance{cfg: cfg}
}

// Name returns the detector name.
func (s *ScannerAvoidance) Name() string { return "scanner_avoidance" }

// Detect compares exit-zone RFID reads against POS transactions.
func (s *ScannerAvoidance) Detect(snap *streams.Snapshot) ([]Candidate, error) {
	var out []Candidate

	for _, r := range snap.RFID {
		if r.Location != types.ZoneOutScanArea || r.SKU == "" {
			continue
		}
		if s.hasMatchingSale(snap, r) {
			continue
		}

		fields := map[string]any{"product_sku": r.SKU}
		out = append(out, Candidate{
			Name:       types.EventScannerAvoidance,
			StationID:  r.StationID,
			CustomerID: r.CustomerID,
			Entity:     r.SKU,
			Timestamp:  r.Timestamp,
			Fields:     fields,
		})
	}

	return out, nil
}

// hasMatchingSale reports whether some POS transaction covers the RFID
// read: same station, same SKU, same customer when the read is attributed,
// within the correlation window either side of the read.
func (s *ScannerAvoidance) hasMatchingSale(snap *streams.Snapshot, r *types.RFIDReading) bool {
	for _, tx := range snap.POS {
		if tx.StationID != r.StationID || tx.SKU != r.SKU {
			continue
		}
		if r.CustomerID != "" && tx.CustomerID != r.CustomerID {
			continue
		}
		if timestamp.Within(tx.Timestamp, r.Timestamp, s.cfg.CorrelationWindow) {
			return true
		}
	}
	return false
}
