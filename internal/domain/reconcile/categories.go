package reconcile

import "github.com/shopspring/decimal"

// Category is the static marketplace mapping for one shop product group:
// the remote category id, the price surcharge covering marketplace fees,
// and whether the group is exempt from that surcharge.
type Category struct {
	GroupCode       string
	EbayCategoryID  string
	Surcharge       decimal.Decimal
	SurchargeExempt bool
}

// categoryTable maps shop product groups to marketplace categories. The
// table is compile-time business data; unknown groups fall through to
// defaultCategory.
var categoryTable = map[string]Category{
	"LP":    {GroupCode: "LP", EbayCategoryID: "176985", Surcharge: decimal.NewFromFloat(1.50)},
	"12IN":  {GroupCode: "12IN", EbayCategoryID: "176985", Surcharge: decimal.NewFromFloat(1.50)},
	"7IN":   {GroupCode: "7IN", EbayCategoryID: "176984", Surcharge: decimal.NewFromFloat(1.00)},
	"CD":    {GroupCode: "CD", EbayCategoryID: "176984", Surcharge: decimal.NewFromFloat(1.00)},
	"TAPE":  {GroupCode: "TAPE", EbayCategoryID: "176983", Surcharge: decimal.NewFromFloat(1.00)},
	"DVD":   {GroupCode: "DVD", EbayCategoryID: "617", Surcharge: decimal.NewFromFloat(1.00)},
	"BOOK":  {GroupCode: "BOOK", EbayCategoryID: "29792", Surcharge: decimal.Zero, SurchargeExempt: true},
	"ZINE":  {GroupCode: "ZINE", EbayCategoryID: "280", Surcharge: decimal.Zero, SurchargeExempt: true},
	"SHIRT": {GroupCode: "SHIRT", EbayCategoryID: "185100", Surcharge: decimal.NewFromFloat(1.50)},
}

// defaultCategory is the explicit fallback for unknown product groups.
var defaultCategory = Category{
	GroupCode:      "OTHER",
	EbayCategoryID: "1059",
	Surcharge:      decimal.NewFromFloat(1.00),
}

// CategoryFor resolves the marketplace category for a shop product group.
func CategoryFor(groupCode string) Category {
	if c, ok := categoryTable[groupCode]; ok {
		return c
	}
	return defaultCategory
}

// ListingPrice returns the price advertised remotely for the given source
// price and product group: source price plus the group surcharge, unless
// the group is surcharge-exempt.
func ListingPrice(sourcePrice decimal.Decimal, groupCode string) decimal.Decimal {
	c := CategoryFor(groupCode)
	if c.SurchargeExempt {
		return sourcePrice
	}
	return sourcePrice.Add(c.Surcharge)
}
