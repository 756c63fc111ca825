// Package catalog loads the product reference data the detectors correlate
// against: catalog weight and price by SKU, and the barcode to SKU mapping.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
)

// Entry is one product row from the catalog CSV.
type Entry struct {
	SKU         string
	ProductName string
	Quantity    int
	EPCRange    string
	Barcode     string
	WeightG     float64
	Price       float64
}

// Catalog indexes catalog entries by SKU and by barcode. Lookups tolerate
// misses; detectors skip records whose product is unknown rather than fail.
type Catalog struct {
	bySKU     map[string]*Entry
	byBarcode map[string]*Entry
}

// Load reads a catalog CSV. The header row names the columns; column order
// does not matter. Rows missing a SKU are skipped.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "catalog", "Load", "open catalog file")
	}
	defer f.Close()

	cat, err := Parse(f)
	if err != nil {
		return nil, errors.WrapInvalid(err, "catalog", "Load", "parse "+path)
	}
	return cat, nil
}

// Parse reads catalog CSV data from a reader.
func Parse(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["sku"]; !ok {
		return nil, fmt.Errorf("catalog header missing SKU column")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	cat := &Catalog{
		bySKU:     make(map[string]*Entry),
		byBarcode: make(map[string]*Entry),
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		sku := field(row, "sku")
		if sku == "" {
			continue
		}

		entry := &Entry{
			SKU:         sku,
			ProductName: field(row, "product_name"),
			EPCRange:    field(row, "epc_range"),
			Barcode:     field(row, "barcode"),
		}
		if v := field(row, "quantity"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				entry.Quantity = n
			}
		}
		if v := field(row, "weight"); v != "" {
			if w, err := strconv.ParseFloat(v, 64); err == nil {
				entry.WeightG = w
			}
		}
		if v := field(row, "price"); v != "" {
			if p, err := strconv.ParseFloat(v, 64); err == nil {
				entry.Price = p
			}
		}

		cat.bySKU[entry.SKU] = entry
		if entry.Barcode != "" {
			cat.byBarcode[entry.Barcode] = entry
		}
	}

	return cat, nil
}

// BySKU returns the entry for a SKU, or nil when the SKU is unknown.
func (c *Catalog) BySKU(sku string) *Entry {
	return c.bySKU[sku]
}

// ByBarcode returns the entry for a barcode. Barcodes that are themselves
// SKUs resolve through the SKU index as a fallback.
func (c *Catalog) ByBarcode(barcode string) *Entry {
	if e, ok := c.byBarcode[barcode]; ok {
		return e
	}
	return c.bySKU[barcode]
}

// Price returns the catalog price for a SKU or barcode, and whether it was
// found.
func (c *Catalog) Price(skuOrBarcode string) (float64, bool) {
	if e := c.BySKU(skuOrBarcode); e != nil {
		return e.Price, true
	}
	if e := c.ByBarcode(skuOrBarcode); e != nil {
		return e.Price, true
	}
	return 0, false
}

// Weight returns the catalog weight in grams for a SKU, and whether it was
// found.
func (c *Catalog) Weight(sku string) (float64, bool) {
	if e := c.BySKU(sku); e != nil {
		return e.WeightG, true
	}
	return 0, false
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.bySKU)
}
