// Package reports derives read-only figures from recorded orders.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	dbpkg "github.com/angelmondragon/sellerhub-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

// MonthlyGross is the seller's income for one calendar month (UTC).
type MonthlyGross struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Gross decimal.Decimal `json:"gross"`
}

type Service interface {
	GrossIncome(ctx context.Context, sellerID string) ([]MonthlyGross, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	return &service{repo: repo}, nil
}

// GrossIncome sums the price of the seller's order lines per month, oldest
// first. A seller without sales gets an empty slice.
func (s *service) GrossIncome(ctx context.Context, sellerID string) ([]MonthlyGross, error) {
	sellerID = strings.TrimSpace(sellerID)
	exists, err := s.repo.sellerExists(ctx, sellerID)
	if err != nil {
		return nil, dbpkg.Classify(err, "check seller")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}

	rows, err := s.repo.sellerSales(ctx, sellerID)
	if err != nil {
		return nil, dbpkg.Classify(err, "load sales")
	}

	type monthKey struct{ year, month int }
	totals := map[monthKey]decimal.Decimal{}
	for _, row := range rows {
		at := row.PurchasedAt.UTC()
		key := monthKey{at.Year(), int(at.Month())}
		totals[key] = totals[key].Add(row.Price)
	}

	out := make([]MonthlyGross, 0, len(totals))
	for key, gross := range totals {
		out = append(out, MonthlyGross{Year: key.year, Month: key.month, Gross: gross})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}
