package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/irfndi/celebrum-catalog/internal/exchange"
	"github.com/irfndi/celebrum-catalog/internal/logging"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/telemetry"
	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	coinRoleMain  = "main"
	coinRoleQuote = "quote"
)

// SpotCoinAggregator merges the spot listings of every registered exchange
// into identity-annotated candidate coins.
type SpotCoinAggregator struct {
	registry *exchange.Registry
	identity *IdentityResolver
	timeout  time.Duration
	logger   *logrus.Entry
}

func NewSpotCoinAggregator(registry *exchange.Registry, identity *IdentityResolver, timeout time.Duration, logger *logrus.Logger) *SpotCoinAggregator {
	return &SpotCoinAggregator{
		registry: registry,
		identity: identity,
		timeout:  timeout,
		logger:   logging.ForComponent(logger, "spot_coin_aggregator"),
	}
}

// aggregationInputs holds the results of every fan-out leg.
type aggregationInputs struct {
	listings   [][]models.ExchangeSpotCoin
	symbolMaps map[models.Exchange]map[string]string
	identities []models.IdentityCoin
}

// GetActiveSpotCoins fetches every exchange listing and the identity data
// concurrently and fails as a whole if any leg fails.
func (a *SpotCoinAggregator) GetActiveSpotCoins(ctx context.Context) (coins []models.CandidateCoin, err error) {
	ctx, span := telemetry.StartSpan(ctx, "aggregator.GetActiveSpotCoins",
		attribute.Int("exchanges", len(a.registry.Clients())))
	defer func() { telemetry.EndSpan(span, err) }()

	start := time.Now()
	inputs, err := a.fetch(ctx)
	if err != nil {
		return nil, utils.NewInternalError("aggregate active spot coins", err)
	}

	coins = a.merge(inputs)
	a.logger.WithFields(logrus.Fields{
		logging.FieldOperation: "GetActiveSpotCoins",
		logging.FieldDuration:  time.Since(start).Milliseconds(),
		"candidates":           len(coins),
	}).Info("Aggregated active spot coins")
	return coins, nil
}

func (a *SpotCoinAggregator) fetch(ctx context.Context) (*aggregationInputs, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	clients := a.registry.Clients()
	listings := make([][]models.ExchangeSpotCoin, len(clients))
	symbolMaps := make([]map[string]string, len(clients))
	var identities []models.IdentityCoin

	// Zero-value group: a failing leg does not cancel the others, every leg is awaited.
	var g errgroup.Group
	for i, client := range clients {
		name := client.Exchange().DisplayName()
		g.Go(func() error {
			coins, err := client.GetAllSpotCoins(ctx)
			if err != nil {
				return utils.NewInternalError(fmt.Sprintf("fetch spot coins from %s", name), err)
			}
			listings[i] = coins
			return nil
		})
		g.Go(func() error {
			m, err := a.identity.GetSymbolToIdMapForExchange(ctx, client.Exchange())
			if err != nil {
				return utils.NewInternalError(fmt.Sprintf("fetch identity map for %s", name), err)
			}
			symbolMaps[i] = m
			return nil
		})
	}
	g.Go(func() error {
		list, err := a.identity.GetCoinsList(ctx)
		if err != nil {
			return utils.NewInternalError("fetch identity coin list", err)
		}
		identities = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inputs := &aggregationInputs{
		listings:   listings,
		symbolMaps: make(map[models.Exchange]map[string]string, len(clients)),
		identities: identities,
	}
	for i, client := range clients {
		inputs.symbolMaps[client.Exchange()] = symbolMaps[i]
	}
	return inputs, nil
}

type pairAccumulator struct {
	quoteName string
	exchanges []models.Exchange
}

type coinAccumulator struct {
	name     string
	listedOn []models.Exchange
	pairs    map[string]*pairAccumulator
}

func (a *SpotCoinAggregator) merge(inputs *aggregationInputs) []models.CandidateCoin {
	clients := a.registry.Clients()
	byMain := make(map[string]*coinAccumulator)
	quoteListedOn := make(map[string][]models.Exchange)

	for i, client := range clients {
		for _, coin := range inputs.listings[i] {
			acc, ok := byMain[coin.Symbol]
			if !ok {
				acc = &coinAccumulator{pairs: make(map[string]*pairAccumulator)}
				byMain[coin.Symbol] = acc
			}
			if acc.name == "" {
				acc.name = coin.Name
			}
			acc.listedOn = appendExchange(acc.listedOn, client.Exchange())

			for _, leg := range coin.TradingPairs {
				if leg.Status != models.TradingPairStatusAvailable || leg.QuoteSymbol == coin.Symbol {
					continue
				}
				legExchange := leg.Exchange
				if legExchange == "" {
					legExchange = client.Exchange()
				}
				pair, ok := acc.pairs[leg.QuoteSymbol]
				if !ok {
					pair = &pairAccumulator{}
					acc.pairs[leg.QuoteSymbol] = pair
				}
				if pair.quoteName == "" {
					pair.quoteName = leg.QuoteName
				}
				pair.exchanges = appendExchange(pair.exchanges, legExchange)
				quoteListedOn[leg.QuoteSymbol] = appendExchange(quoteListedOn[leg.QuoteSymbol], legExchange)
			}
		}
	}

	index := NewIdentityIndex(inputs.identities, inputs.symbolMaps)
	warned := make(map[string]struct{})
	quotes := make(map[string]IdentityResolution)

	symbols := make([]string, 0, len(byMain))
	for symbol, acc := range byMain {
		if len(acc.pairs) > 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	candidates := make([]models.CandidateCoin, 0, len(symbols))
	for _, symbol := range symbols {
		acc := byMain[symbol]
		res := index.Resolve(symbol, a.sortExchanges(acc.listedOn))
		a.report(symbol, coinRoleMain, res, warned)

		candidate := models.CandidateCoin{
			Symbol:       symbol,
			Name:         firstNonEmpty(res.Name, acc.name),
			IdentityID:   res.ID,
			Category:     res.Category,
			TradingPairs: make([]models.CandidateTradingPair, 0, len(acc.pairs)),
		}

		quoteSymbols := make([]string, 0, len(acc.pairs))
		for quote := range acc.pairs {
			quoteSymbols = append(quoteSymbols, quote)
		}
		sort.Strings(quoteSymbols)

		for _, quote := range quoteSymbols {
			pair := acc.pairs[quote]
			qres, ok := quotes[quote]
			if !ok {
				qres = index.Resolve(quote, a.sortExchanges(quoteListedOn[quote]))
				quotes[quote] = qres
				a.report(quote, coinRoleQuote, qres, warned)
			}
			candidate.TradingPairs = append(candidate.TradingPairs, models.CandidateTradingPair{
				QuoteSymbol:     quote,
				QuoteName:       firstNonEmpty(qres.Name, pair.quoteName),
				QuoteIdentityID: qres.ID,
				QuoteCategory:   qres.Category,
				Exchanges:       a.sortExchanges(pair.exchanges),
			})
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

// report logs data-quality warnings once per symbol, role and exchange.
func (a *SpotCoinAggregator) report(symbol, role string, res IdentityResolution, warned map[string]struct{}) {
	for _, ex := range res.InactiveOn {
		key := "inactive|" + role + "|" + symbol + "|" + string(ex)
		if _, seen := warned[key]; seen {
			continue
		}
		warned[key] = struct{}{}
		a.logger.WithFields(logrus.Fields{
			logging.FieldSymbol:   symbol,
			logging.FieldExchange: ex.String(),
			logging.FieldCoinRole: role,
			"identity_id":         res.InactiveID[ex],
		}).Warn("Coin identity is inactive")
	}

	if res.Status() != ResolutionMissing || res.IsFiat() {
		return
	}
	key := "missing|" + role + "|" + symbol
	if _, seen := warned[key]; seen {
		return
	}
	warned[key] = struct{}{}
	message := "Main coin name is missing"
	if role == coinRoleQuote {
		message = "Quote coin name is missing"
	}
	a.logger.WithFields(logrus.Fields{
		logging.FieldSymbol:   symbol,
		logging.FieldCoinRole: role,
	}).Warn(message)
}

// sortExchanges orders exchanges by registry priority.
func (a *SpotCoinAggregator) sortExchanges(exchanges []models.Exchange) []models.Exchange {
	sorted := append([]models.Exchange(nil), exchanges...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return a.rank(sorted[i]) < a.rank(sorted[j])
	})
	return sorted
}

func (a *SpotCoinAggregator) rank(ex models.Exchange) int {
	if i := a.registry.Index(ex); i >= 0 {
		return i
	}
	return len(a.registry.Clients())
}

func appendExchange(exchanges []models.Exchange, ex models.Exchange) []models.Exchange {
	for _, e := range exchanges {
		if e == ex {
			return exchanges
		}
	}
	return append(exchanges, ex)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
