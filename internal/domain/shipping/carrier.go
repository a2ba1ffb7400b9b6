package shipping

import (
	"regexp"
	"strings"
)

// CarrierCode is the canonical marketplace shipping carrier code.
type CarrierCode string

const (
	CarrierDHL          CarrierCode = "DHL"
	CarrierDeutschePost CarrierCode = "DEUTSCHE_POST"
	CarrierHermes       CarrierCode = "HERMES"
	CarrierDPD          CarrierCode = "DPD"
	CarrierGLS          CarrierCode = "GLS"
	CarrierUPS          CarrierCode = "UPS"
	CarrierFedEx        CarrierCode = "FEDEX"
	CarrierUSPS         CarrierCode = "USPS"
	CarrierRoyalMail    CarrierCode = "ROYAL_MAIL"
	// CarrierOther is the sentinel for anything neither stage resolves.
	CarrierOther CarrierCode = "OTHER"
)

// String returns the string representation of the carrier code
func (c CarrierCode) String() string {
	return string(c)
}

// carrierAliases maps normalized free-text carrier labels to canonical
// codes. Lookup is by substring so "DHL Paket" and "Versand per DHL" both
// resolve. Order matters where aliases overlap; more specific entries come
// first.
var carrierAliases = []struct {
	alias string
	code  CarrierCode
}{
	{"deutsche post", CarrierDeutschePost},
	{"dt. post", CarrierDeutschePost},
	{"warenpost", CarrierDeutschePost},
	{"royal mail", CarrierRoyalMail},
	{"dhl", CarrierDHL},
	{"hermes", CarrierHermes},
	{"dpd", CarrierDPD},
	{"gls", CarrierGLS},
	{"ups", CarrierUPS},
	{"fedex", CarrierFedEx},
	{"fed ex", CarrierFedEx},
	{"usps", CarrierUSPS},
	{"post", CarrierDeutschePost},
	{"brief", CarrierDeutschePost},
}

// trackingPatterns maps tracking-number shapes to carrier codes. Order
// matters: the narrow shapes come before the broad digit-count fallbacks.
var trackingPatterns = []struct {
	re   *regexp.Regexp
	code CarrierCode
}{
	{regexp.MustCompile(`^1Z[0-9A-Z]{16}$`), CarrierUPS},
	{regexp.MustCompile(`^9[2-5]\d{20,24}$`), CarrierUSPS},
	{regexp.MustCompile(`^[A-Z]{2}\d{9}DE$`), CarrierDeutschePost},
	{regexp.MustCompile(`^00340434\d{12}$`), CarrierDHL},
	{regexp.MustCompile(`^H\d{13,19}$`), CarrierHermes},
	{regexp.MustCompile(`^0\d{13}$`), CarrierDPD},
	{regexp.MustCompile(`^\d{11}$`), CarrierGLS},
	{regexp.MustCompile(`^\d{15}$`), CarrierFedEx},
	{regexp.MustCompile(`^\d{12}$`), CarrierDHL},
	{regexp.MustCompile(`^\d{20}$`), CarrierDHL},
}

// Resolve maps a free-text carrier label, or failing that a tracking
// number, to a canonical carrier code. Resolution is pure and
// side-effect-free:
//
//  1. normalize the label and look it up in the alias table
//  2. match the tracking number against per-carrier structural patterns
//  3. fall back to CarrierOther
func Resolve(shipper, tracking string) CarrierCode {
	if code, ok := resolveAlias(shipper); ok {
		return code
	}
	if code, ok := resolveTracking(tracking); ok {
		return code
	}
	return CarrierOther
}

func resolveAlias(shipper string) (CarrierCode, bool) {
	normalized := strings.ToLower(strings.TrimSpace(shipper))
	if normalized == "" {
		return CarrierOther, false
	}
	for _, entry := range carrierAliases {
		if strings.Contains(normalized, entry.alias) {
			return entry.code, true
		}
	}
	return CarrierOther, false
}

func resolveTracking(tracking string) (CarrierCode, bool) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(tracking), " ", ""))
	if normalized == "" {
		return CarrierOther, false
	}
	for _, entry := range trackingPatterns {
		if entry.re.MatchString(normalized) {
			return entry.code, true
		}
	}
	return CarrierOther, false
}
