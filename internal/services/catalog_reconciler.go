package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/celebrum-catalog/internal/logging"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/telemetry"
	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// errNoTradingPairs stops reconciliation early when no candidate pair resolves.
var errNoTradingPairs = errors.New("no trading pairs to reconcile")

// CatalogReconciler diffs the candidate coins against the persisted catalog
// and rewrites the trading-pair graph of every main coin. Quote-only coins are
// reused as quotes but never matched as mains.
//
// The steps run in order and abort on the first failure. Each step is safe to
// re-run: quote coins are matched by symbol and pairs by (main, quote), so a
// retry after a partial failure repairs the catalog. Only one reconciliation
// runs at a time; an overlapping call fails with a Conflict error.
type CatalogReconciler struct {
	running    sync.Mutex
	repo       CatalogRepository
	candidates CandidateSource
	logger     *logrus.Entry
}

func NewCatalogReconciler(repo CatalogRepository, candidates CandidateSource, logger *logrus.Logger) *CatalogReconciler {
	return &CatalogReconciler{
		repo:       repo,
		candidates: candidates,
		logger:     logging.ForComponent(logger, "catalog_reconciler"),
	}
}

type plannedPair struct {
	main      models.Coin
	quote     models.CandidateTradingPair
	exchanges []models.Exchange
}

type reconcileState struct {
	catalog    []models.Coin
	candidates []models.CandidateCoin

	mainIDs   []uuid.UUID
	mains     []models.Coin
	matched   map[string]models.CandidateCoin
	planned   []plannedPair
	quoteIDs  map[string]uuid.UUID
	newQuotes []models.QuoteCoinCreateRequest
	requests  []models.TradingPairCreateRequest

	created  int
	replaced int64
	deleted  int64
	result   []models.Coin
}

type reconcileStep struct {
	name string
	run  func(ctx context.Context, state *reconcileState) error
}

func (r *CatalogReconciler) steps() []reconcileStep {
	return []reconcileStep{
		{name: "load catalog and candidate coins", run: r.load},
		{name: "match candidate coins", run: r.match},
		{name: "resolve quote coins", run: r.resolveQuotes},
		{name: "create quote coins", run: r.createQuoteCoins},
		{name: "build trading pairs", run: r.buildTradingPairs},
		{name: "replace trading pairs", run: r.replaceTradingPairs},
		{name: "delete unreferenced coins", run: r.deleteUnreferencedCoins},
		{name: "load reconciled coins", run: r.loadResult},
	}
}

// ReconcileTradingPairs returns the main coins that hold at least one trading
// pair after the replace.
func (r *CatalogReconciler) ReconcileTradingPairs(ctx context.Context) (coins []models.Coin, err error) {
	ctx, span := telemetry.StartSpan(ctx, "reconciler.ReconcileTradingPairs")
	defer func() { telemetry.EndSpan(span, err) }()

	if !r.running.TryLock() {
		return nil, utils.NewConflictError("reconciliation already in progress")
	}
	defer r.running.Unlock()

	start := time.Now()
	state := &reconcileState{}
	for _, step := range r.steps() {
		if err := step.run(ctx, state); err != nil {
			if errors.Is(err, errNoTradingPairs) {
				r.logger.WithField(logging.FieldOperation, "ReconcileTradingPairs").
					Info("No candidate trading pairs matched the catalog")
				return []models.Coin{}, nil
			}
			return nil, utils.NewInternalError(step.name, err)
		}
	}

	r.logger.WithFields(logrus.Fields{
		logging.FieldOperation: "ReconcileTradingPairs",
		logging.FieldDuration:  time.Since(start).Milliseconds(),
		"coins":                len(state.result),
		"quote_coins_created":  state.created,
		"pairs_replaced":       state.replaced,
		"coins_deleted":        state.deleted,
	}).Info("Reconciled trading pairs")
	return state.result, nil
}

func (r *CatalogReconciler) load(ctx context.Context, state *reconcileState) error {
	var g errgroup.Group
	g.Go(func() error {
		coins, err := r.repo.GetAllCoins(ctx)
		if err != nil {
			return utils.NewInternalError("fetch catalog coins", err)
		}
		state.catalog = coins
		return nil
	})
	g.Go(func() error {
		candidates, err := r.candidates.GetOrRefresh(ctx)
		if err != nil {
			return utils.NewInternalError("fetch candidate coins", err)
		}
		state.candidates = candidates
		return nil
	})
	return g.Wait()
}

func (r *CatalogReconciler) match(_ context.Context, state *reconcileState) error {
	bySymbol := make(map[string]models.CandidateCoin, len(state.candidates))
	for _, c := range state.candidates {
		bySymbol[c.Symbol] = c
	}

	state.matched = make(map[string]models.CandidateCoin)
	for _, coin := range state.catalog {
		if coin.QuoteOnly {
			continue
		}
		state.mainIDs = append(state.mainIDs, coin.ID)
		candidate, ok := bySymbol[coin.Symbol]
		if !ok {
			continue
		}
		state.mains = append(state.mains, coin)
		state.matched[coin.Symbol] = candidate
	}
	sort.Slice(state.mains, func(i, j int) bool { return state.mains[i].Symbol < state.mains[j].Symbol })
	return nil
}

func (r *CatalogReconciler) resolveQuotes(_ context.Context, state *reconcileState) error {
	existing := make(map[string]uuid.UUID, len(state.catalog))
	for _, coin := range state.catalog {
		existing[coin.Symbol] = coin.ID
	}

	state.quoteIDs = make(map[string]uuid.UUID)
	requested := make(map[string]struct{})
	for _, main := range state.mains {
		for _, pair := range orderCandidatePairs(state.matched[main.Symbol].TradingPairs) {
			if pair.QuoteSymbol == main.Symbol || len(pair.Exchanges) == 0 {
				continue
			}
			state.planned = append(state.planned, plannedPair{main: main, quote: pair, exchanges: pair.Exchanges})

			if id, ok := existing[pair.QuoteSymbol]; ok {
				state.quoteIDs[pair.QuoteSymbol] = id
				continue
			}
			if _, ok := requested[pair.QuoteSymbol]; ok {
				continue
			}
			requested[pair.QuoteSymbol] = struct{}{}
			state.newQuotes = append(state.newQuotes, newQuoteCoinRequest(pair))
		}
	}

	if len(state.planned) == 0 {
		return errNoTradingPairs
	}
	return nil
}

func (r *CatalogReconciler) createQuoteCoins(ctx context.Context, state *reconcileState) error {
	if len(state.newQuotes) == 0 {
		return nil
	}
	created, err := r.repo.CreateQuoteCoins(ctx, state.newQuotes)
	if err != nil {
		return err
	}
	for _, coin := range created {
		state.quoteIDs[coin.Symbol] = coin.ID
	}
	for _, req := range state.newQuotes {
		if _, ok := state.quoteIDs[req.Symbol]; !ok {
			return fmt.Errorf("quote coin %s was not returned by the catalog", req.Symbol)
		}
	}
	state.created = len(created)
	return nil
}

func (r *CatalogReconciler) buildTradingPairs(_ context.Context, state *reconcileState) error {
	state.requests = make([]models.TradingPairCreateRequest, 0, len(state.planned))
	for _, p := range state.planned {
		state.requests = append(state.requests, models.TradingPairCreateRequest{
			CoinID:      p.main.ID,
			CrossCoinID: state.quoteIDs[p.quote.QuoteSymbol],
			Exchanges:   p.exchanges,
		})
	}
	return nil
}

func (r *CatalogReconciler) replaceTradingPairs(ctx context.Context, state *reconcileState) error {
	n, err := r.repo.ReplaceTradingPairs(ctx, state.mainIDs, state.requests)
	if err != nil {
		return err
	}
	state.replaced = n
	return nil
}

func (r *CatalogReconciler) deleteUnreferencedCoins(ctx context.Context, state *reconcileState) error {
	n, err := r.repo.DeleteUnreferencedCoins(ctx)
	if err != nil {
		return err
	}
	state.deleted = n
	return nil
}

func (r *CatalogReconciler) loadResult(ctx context.Context, state *reconcileState) error {
	ids := make([]uuid.UUID, 0, len(state.mains))
	seen := make(map[uuid.UUID]struct{})
	for _, p := range state.planned {
		if _, ok := seen[p.main.ID]; ok {
			continue
		}
		seen[p.main.ID] = struct{}{}
		ids = append(ids, p.main.ID)
	}

	coins, err := r.repo.GetCoinsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	state.result = make([]models.Coin, 0, len(coins))
	for _, coin := range coins {
		if len(coin.TradingPairs) > 0 {
			state.result = append(state.result, coin)
		}
	}
	return nil
}

func newQuoteCoinRequest(pair models.CandidateTradingPair) models.QuoteCoinCreateRequest {
	req := models.QuoteCoinCreateRequest{
		Symbol:   pair.QuoteSymbol,
		Name:     firstNonEmpty(pair.QuoteName, pair.QuoteSymbol),
		Category: pair.QuoteCategory,
	}
	if req.Category == "" {
		req.Category = models.CoinCategoryNone
	}
	if pair.QuoteIdentityID != "" {
		id := pair.QuoteIdentityID
		req.IdentityID = &id
	}
	return req
}

// orderCandidatePairs puts stablecoin quotes first, then fiat, then the rest,
// each group by symbol. The order becomes the kline fallback order.
func orderCandidatePairs(pairs []models.CandidateTradingPair) []models.CandidateTradingPair {
	ordered := append([]models.CandidateTradingPair(nil), pairs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := quoteCategoryRank(ordered[i].QuoteCategory), quoteCategoryRank(ordered[j].QuoteCategory)
		if ri != rj {
			return ri < rj
		}
		return ordered[i].QuoteSymbol < ordered[j].QuoteSymbol
	})
	return ordered
}

func quoteCategoryRank(category models.CoinCategory) int {
	switch category {
	case models.CoinCategoryStablecoin:
		return 0
	case models.CoinCategoryFiat:
		return 1
	}
	return 2
}
