package pricing

// Money represents a monetary value. Amounts are stored unrounded; rounding
// happens at the presentation layer only.
type Money = float64

// DiscountKind selects how a line-item discount is interpreted.
type DiscountKind string

const (
	// DiscountPercentage treats the discount value as a percentage of the selling price.
	DiscountPercentage DiscountKind = "percentage"
	// DiscountFixed treats the discount value as an absolute amount.
	DiscountFixed DiscountKind = "fixed"
)

// SqmmPerSqft converts square millimetres to square feet.
const SqmmPerSqft = 92903.04

// Resolve computes the net price for a line item given its selling price,
// discount value and discount kind. A zero discount returns the selling price
// unchanged in both branches. Fixed discounts never produce a negative net
// price; percentage discounts are not clamped. Negative discount values are
// passed through untouched; range validation belongs to the input layer.
func Resolve(sellingPrice, discount Money, kind DiscountKind) Money {
	if kind == DiscountPercentage {
		return sellingPrice * (1 - discount/100)
	}
	net := sellingPrice - discount
	if net < 0 {
		return 0
	}
	return net
}

// ComputeInstallation derives the area and charge amount for an installation
// charge from physical dimensions in millimetres and a price per square foot.
// It reports ok=false when either dimension is zero or negative, meaning the
// charge is not computable.
func ComputeInstallation(widthMm, heightMm, pricePerSqft float64) (areaSqft, amount float64, ok bool) {
	if widthMm <= 0 || heightMm <= 0 {
		return 0, 0, false
	}
	areaSqft = widthMm * heightMm / SqmmPerSqft
	amount = areaSqft * pricePerSqft
	return areaSqft, amount, true
}
