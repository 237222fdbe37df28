package catalog

// OutOfStock reports whether p is unpurchasable. Either signal suffices:
// a zero counter, or the manual in_stock=false flag (e.g. discontinued).
func OutOfStock(p Product) bool {
	return p.StockQuantity <= 0 || !p.InStock
}

// LowStock reports whether p is running low but still sellable.
func LowStock(p Product) bool {
	return p.StockQuantity > 0 && p.StockQuantity <= p.LowStockThreshold
}

// PurchaseDecision is the outcome of clamping a requested quantity
// against current stock.
type PurchaseDecision struct {
	Allowed  int  `json:"allowed"`
	Rejected bool `json:"rejected"`
}

// ClampPurchaseQuantity caps requested at what the snapshot says is
// sellable right now. Out-of-stock products reject any request outright.
func ClampPurchaseQuantity(p Product, requested int) PurchaseDecision {
	if OutOfStock(p) {
		return PurchaseDecision{Allowed: 0, Rejected: true}
	}
	if requested <= 0 {
		return PurchaseDecision{}
	}
	allowed := requested
	if allowed > p.StockQuantity {
		allowed = p.StockQuantity
	}
	return PurchaseDecision{Allowed: allowed, Rejected: allowed < requested}
}
