package services

import (
	"context"

	"github.com/irfndi/celebrum-catalog/internal/models"
)

// fiatCurrencies is the fixed registry of fiat codes exchanges quote against.
var fiatCurrencies = map[string]string{
	"USD": "US Dollar",
	"EUR": "Euro",
	"GBP": "British Pound",
	"JPY": "Japanese Yen",
	"AUD": "Australian Dollar",
	"CAD": "Canadian Dollar",
	"CHF": "Swiss Franc",
	"TRY": "Turkish Lira",
	"BRL": "Brazilian Real",
	"KRW": "South Korean Won",
	"RUB": "Russian Ruble",
	"UAH": "Ukrainian Hryvnia",
	"PLN": "Polish Zloty",
	"NGN": "Nigerian Naira",
	"ZAR": "South African Rand",
	"MXN": "Mexican Peso",
	"ARS": "Argentine Peso",
	"IDR": "Indonesian Rupiah",
	"INR": "Indian Rupee",
	"HKD": "Hong Kong Dollar",
	"SGD": "Singapore Dollar",
	"CZK": "Czech Koruna",
	"SEK": "Swedish Krona",
	"NOK": "Norwegian Krone",
	"DKK": "Danish Krone",
	"NZD": "New Zealand Dollar",
	"AED": "UAE Dirham",
}

// FiatName returns the currency name when symbol is a recognized fiat code.
func FiatName(symbol string) (string, bool) {
	name, ok := fiatCurrencies[symbol]
	return name, ok
}

// IdentityResolver adapts the identity provider to catalog exchanges.
type IdentityResolver struct {
	provider IdentityProvider
}

func NewIdentityResolver(provider IdentityProvider) *IdentityResolver {
	return &IdentityResolver{provider: provider}
}

func (r *IdentityResolver) GetCoinsList(ctx context.Context) ([]models.IdentityCoin, error) {
	return r.provider.GetCoinsList(ctx)
}

func (r *IdentityResolver) GetSymbolToIdMapForExchange(ctx context.Context, exchange models.Exchange) (map[string]string, error) {
	return r.provider.GetSymbolToIdMapForExchange(ctx, exchange.IdentityExchangeID())
}

func (r *IdentityResolver) GetAssetsInfo(ctx context.Context, ids []string) ([]models.AssetInfo, error) {
	return r.provider.GetAssetsInfo(ctx, ids)
}

// ResolutionStatus summarizes how a symbol resolved against the identity data.
type ResolutionStatus string

const (
	ResolutionResolved ResolutionStatus = "Resolved"
	ResolutionInactive ResolutionStatus = "Inactive"
	ResolutionMissing  ResolutionStatus = "Missing"
)

// IdentityResolution is what the identity data says about one symbol.
type IdentityResolution struct {
	ID       string
	Name     string
	Category models.CoinCategory
	// Mapped is false when no exchange had any id for the symbol.
	Mapped bool
	// InactiveOn lists exchanges whose mapped id is absent from the identity list.
	InactiveOn []models.Exchange
	InactiveID map[models.Exchange]string
}

// IdentityIndex answers identity lookups for one aggregation run.
type IdentityIndex struct {
	coins      map[string]models.IdentityCoin
	symbolMaps map[models.Exchange]map[string]string
}

func NewIdentityIndex(coins []models.IdentityCoin, symbolMaps map[models.Exchange]map[string]string) *IdentityIndex {
	byID := make(map[string]models.IdentityCoin, len(coins))
	for _, c := range coins {
		byID[c.ID] = c
	}
	return &IdentityIndex{coins: byID, symbolMaps: symbolMaps}
}

// Resolve looks the symbol up through each exchange's map in order and takes
// the first id that is present in the identity list. Fiat codes are
// categorized from the fixed registry whatever the provider says.
func (ix *IdentityIndex) Resolve(symbol string, exchanges []models.Exchange) IdentityResolution {
	res := IdentityResolution{Category: models.CoinCategoryNone}

	for _, exchange := range exchanges {
		id, ok := ix.symbolMaps[exchange][symbol]
		if !ok || id == "" {
			continue
		}
		res.Mapped = true
		coin, active := ix.coins[id]
		if !active {
			if res.InactiveID == nil {
				res.InactiveID = make(map[models.Exchange]string)
			}
			res.InactiveOn = append(res.InactiveOn, exchange)
			res.InactiveID[exchange] = id
			continue
		}
		if res.ID == "" {
			res.ID = coin.ID
			res.Name = coin.Name
			if coin.IsStablecoin {
				res.Category = models.CoinCategoryStablecoin
			}
		}
	}

	if name, ok := FiatName(symbol); ok {
		res.Category = models.CoinCategoryFiat
		if res.Name == "" {
			res.Name = name
		}
	}
	return res
}

func (r IdentityResolution) Status() ResolutionStatus {
	switch {
	case r.ID != "":
		return ResolutionResolved
	case len(r.InactiveOn) > 0:
		return ResolutionInactive
	}
	return ResolutionMissing
}

// IsFiat reports whether the fixed fiat registry categorized the symbol.
func (r IdentityResolution) IsFiat() bool {
	return r.Category == models.CoinCategoryFiat
}
