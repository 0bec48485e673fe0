package stock

import (
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

// LineQuantity is a quantity of one product of an implied seller.
type LineQuantity struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// StockLine is a quantity of one (seller, product) pair.
type StockLine struct {
	SellerID  string
	ProductID string
	Quantity  int
}

type stockKey struct {
	sellerID  string
	productID string
}

// mergedLine is a per-key total that remembers where the key first appeared
// in the caller's input.
type mergedLine struct {
	StockLine
	first int
}

// mergeLines sums quantities per (seller, product) and returns them in key
// order. Every multi-row writer walks rows in this order.
func mergeLines(lines []StockLine) ([]mergedLine, error) {
	index := make(map[stockKey]int, len(lines))
	merged := make([]mergedLine, 0, len(lines))
	for i, line := range lines {
		sellerID := strings.TrimSpace(line.SellerID)
		productID := strings.TrimSpace(line.ProductID)
		if sellerID == "" || productID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id and product id required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"seller_id": sellerID, "product_id": productID, "quantity": line.Quantity})
		}
		key := stockKey{sellerID, productID}
		if at, ok := index[key]; ok {
			merged[at].Quantity += line.Quantity
			continue
		}
		index[key] = len(merged)
		merged = append(merged, mergedLine{
			StockLine: StockLine{SellerID: sellerID, ProductID: productID, Quantity: line.Quantity},
			first:     i,
		})
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].SellerID != merged[j].SellerID {
			return merged[i].SellerID < merged[j].SellerID
		}
		return merged[i].ProductID < merged[j].ProductID
	})
	return merged, nil
}

func sellerLines(sellerID string, lines []LineQuantity) []StockLine {
	out := make([]StockLine, len(lines))
	for i, line := range lines {
		out[i] = StockLine{SellerID: sellerID, ProductID: line.ProductID, Quantity: line.Quantity}
	}
	return out
}
