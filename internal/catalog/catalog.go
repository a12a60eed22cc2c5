// Package catalog holds the static package definitions the payment
// workflow sells. The workflow treats this as read-only configuration.
package catalog

import (
	"sort"

	"github.com/shopspring/decimal"
)

type Package struct {
	ID                 string
	Name               string
	Rights             int
	PriceMinor         int64
	OriginalPriceMinor int64
	Popular            bool
}

// DiscountPercent is the rounded percentage saved against the original
// price, computed in decimal so a price change never drifts through float
// arithmetic.
func (p Package) DiscountPercent() int64 {
	if p.OriginalPriceMinor == 0 {
		return 0
	}
	original := decimal.NewFromInt(p.OriginalPriceMinor)
	saved := original.Sub(decimal.NewFromInt(p.PriceMinor))
	return saved.Div(original).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// PricePerRight is the kuruş cost of a single conversion right, rounded
// bankers-style to whole kuruş.
func (p Package) PricePerRight() int64 {
	if p.Rights == 0 {
		return 0
	}
	return decimal.NewFromInt(p.PriceMinor).
		Div(decimal.NewFromInt(int64(p.Rights))).
		RoundBank(0).IntPart()
}

func (p Package) SavingsMinor() int64 {
	return p.OriginalPriceMinor - p.PriceMinor
}

type Catalog struct {
	packages map[string]Package
}

func New(packages []Package) *Catalog {
	byID := make(map[string]Package, len(packages))
	for _, p := range packages {
		byID[p.ID] = p
	}
	return &Catalog{packages: byID}
}

// Default mirrors the production package tiers. Prices are in kuruş.
func Default() *Catalog {
	return New([]Package{
		{ID: "5", Name: "Starter", Rights: 5, PriceMinor: 20000, OriginalPriceMinor: 30000},
		{ID: "15", Name: "Silver", Rights: 15, PriceMinor: 50000, OriginalPriceMinor: 75000},
		{ID: "30", Name: "Diamond", Rights: 30, PriceMinor: 100000, OriginalPriceMinor: 140000, Popular: true},
		{ID: "50", Name: "Platinum", Rights: 50, PriceMinor: 150000, OriginalPriceMinor: 200000},
		{ID: "75", Name: "Elite", Rights: 75, PriceMinor: 225000, OriginalPriceMinor: 300000, Popular: true},
	})
}

func (c *Catalog) Get(id string) (Package, bool) {
	p, ok := c.packages[id]
	return p, ok
}

// List returns packages ordered by rights, smallest first.
func (c *Catalog) List() []Package {
	out := make([]Package, 0, len(c.packages))
	for _, p := range c.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rights < out[j].Rights })
	return out
}
