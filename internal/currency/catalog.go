// Package currency holds the static currency catalog and the display-only
// converter used to aggregate balances held in different currencies.
package currency

import (
	"sort"
	"strings"

	"teymia/internal/models"
)

func fiat(code, symbol, name string) models.Currency {
	return models.Currency{Code: code, Symbol: symbol, Name: name, Kind: models.CurrencyKindFiat}
}

func crypto(code, symbol, name string) models.Currency {
	return models.Currency{Code: code, Symbol: symbol, Name: name, Kind: models.CurrencyKindCrypto}
}

// catalog is ordered the way it is presented to users.
var catalog = []models.Currency{
	fiat("USD", "$", "US Dollar"),
	fiat("EUR", "€", "Euro"),
	fiat("GBP", "£", "British Pound"),
	fiat("JPY", "¥", "Japanese Yen"),
	fiat("CNY", "¥", "Chinese Yuan"),
	fiat("CHF", "Fr", "Swiss Franc"),
	fiat("CAD", "$", "Canadian Dollar"),
	fiat("AUD", "$", "Australian Dollar"),
	fiat("NZD", "$", "New Zealand Dollar"),
	fiat("HKD", "$", "Hong Kong Dollar"),
	fiat("SGD", "$", "Singapore Dollar"),
	fiat("MYR", "RM", "Malaysian Ringgit"),
	fiat("INR", "₹", "Indian Rupee"),
	fiat("KRW", "₩", "South Korean Won"),
	fiat("THB", "฿", "Thai Baht"),
	fiat("IDR", "Rp", "Indonesian Rupiah"),
	fiat("PHP", "₱", "Philippine Peso"),
	fiat("VND", "₫", "Vietnamese Dong"),
	fiat("RUB", "₽", "Russian Ruble"),
	fiat("UAH", "₴", "Ukrainian Hryvnia"),
	fiat("KZT", "₸", "Kazakhstani Tenge"),
	fiat("TRY", "₺", "Turkish Lira"),
	fiat("PLN", "zł", "Polish Zloty"),
	fiat("CZK", "Kč", "Czech Koruna"),
	fiat("SEK", "kr", "Swedish Krona"),
	fiat("NOK", "kr", "Norwegian Krone"),
	fiat("DKK", "kr", "Danish Krone"),
	fiat("HUF", "Ft", "Hungarian Forint"),
	fiat("ILS", "₪", "Israeli New Shekel"),
	fiat("AED", "د.إ", "UAE Dirham"),
	fiat("SAR", "﷼", "Saudi Riyal"),
	fiat("ZAR", "R", "South African Rand"),
	fiat("BRL", "R$", "Brazilian Real"),
	fiat("MXN", "$", "Mexican Peso"),
	fiat("ARS", "$", "Argentine Peso"),
	fiat("GEL", "₾", "Georgian Lari"),
	fiat("AMD", "֏", "Armenian Dram"),
	crypto("BTC", "₿", "Bitcoin"),
	crypto("ETH", "Ξ", "Ethereum"),
	crypto("USDT", "₮", "Tether"),
	crypto("USDC", "$", "USD Coin"),
	crypto("BNB", "BNB", "BNB"),
	crypto("SOL", "◎", "Solana"),
	crypto("XRP", "XRP", "XRP"),
	crypto("ADA", "₳", "Cardano"),
	crypto("DOGE", "Ð", "Dogecoin"),
	crypto("TON", "TON", "Toncoin"),
	crypto("LTC", "Ł", "Litecoin"),
}

// List returns the catalog, optionally restricted to one kind.
// The returned slice is a copy.
func List(kind *models.CurrencyKind) []models.Currency {
	out := make([]models.Currency, 0, len(catalog))
	for _, c := range catalog {
		if kind != nil && c.Kind != *kind {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Find looks up a currency by code, ignoring case.
func Find(code string) (models.Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range catalog {
		if c.Code == code {
			return c, true
		}
	}
	return models.Currency{}, false
}

// Search matches query case-insensitively against code and name. An exact
// code match comes first; the rest are ordered by code. An empty query
// returns List(kind).
func Search(query string, kind *models.CurrencyKind) []models.Currency {
	q := strings.ToLower(strings.TrimSpace(query))
	all := List(kind)
	if q == "" {
		return all
	}

	var exact []models.Currency
	var rest []models.Currency
	for _, c := range all {
		code := strings.ToLower(c.Code)
		switch {
		case code == q:
			exact = append(exact, c)
		case strings.Contains(code, q) || strings.Contains(strings.ToLower(c.Name), q):
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Code < rest[j].Code })
	return append(exact, rest...)
}
