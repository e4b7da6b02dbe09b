package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DatabasePool is the subset of pgxpool.Pool the repositories need.
// pgxmock.PgxPoolIface satisfies it in tests.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CatalogRepository persists coins and the trading-pair graph between them.
type CatalogRepository struct {
	pool DatabasePool
}

func NewCatalogRepository(pool DatabasePool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const coinColumns = `id::text, symbol, name, category, identity_id,
	market_cap::text, price::text, price_change_24h::text, quote_only`

// GetAllCoins returns every coin with its trading pairs attached.
func (r *CatalogRepository) GetAllCoins(ctx context.Context) ([]models.Coin, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+coinColumns+` FROM coins ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query coins: %w", err)
	}
	coins, err := scanCoins(rows)
	if err != nil {
		return nil, err
	}

	pairRows, err := r.pool.Query(ctx, `
		SELECT tp.id::text, tp.coin_id::text, tp.cross_coin_id::text, q.symbol, tp.exchanges
		FROM trading_pairs tp
		JOIN coins q ON q.id = tp.cross_coin_id
		ORDER BY tp.coin_id, tp.priority, q.symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trading pairs: %w", err)
	}
	if err := attachTradingPairs(pairRows, coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// GetCoinsByIDs returns the coins with the given ids. Unknown ids are ignored.
func (r *CatalogRepository) GetCoinsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Coin, error) {
	if len(ids) == 0 {
		return []models.Coin{}, nil
	}
	idArgs := uuidStrings(ids)

	rows, err := r.pool.Query(ctx,
		`SELECT `+coinColumns+` FROM coins WHERE id = ANY($1::uuid[]) ORDER BY symbol`, idArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to query coins by id: %w", err)
	}
	coins, err := scanCoins(rows)
	if err != nil {
		return nil, err
	}

	pairRows, err := r.pool.Query(ctx, `
		SELECT tp.id::text, tp.coin_id::text, tp.cross_coin_id::text, q.symbol, tp.exchanges
		FROM trading_pairs tp
		JOIN coins q ON q.id = tp.cross_coin_id
		WHERE tp.coin_id = ANY($1::uuid[])
		ORDER BY tp.coin_id, tp.priority, q.symbol`, idArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to query trading pairs by coin id: %w", err)
	}
	if err := attachTradingPairs(pairRows, coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// CreateQuoteCoins inserts quote coins keyed by symbol. Existing symbols are
// returned unchanged, so repeating a request never creates duplicates.
func (r *CatalogRepository) CreateQuoteCoins(ctx context.Context, requests []models.QuoteCoinCreateRequest) ([]models.Coin, error) {
	if len(requests) == 0 {
		return []models.Coin{}, nil
	}

	symbols := make([]string, len(requests))
	names := make([]string, len(requests))
	identityIDs := make([]string, len(requests))
	categories := make([]string, len(requests))
	for i, req := range requests {
		symbols[i] = req.Symbol
		names[i] = req.Name
		if req.IdentityID != nil {
			identityIDs[i] = *req.IdentityID
		}
		categories[i] = string(req.Category)
		if categories[i] == "" {
			categories[i] = string(models.CoinCategoryNone)
		}
	}

	rows, err := r.pool.Query(ctx, `
		INSERT INTO coins (symbol, name, identity_id, category, quote_only)
		SELECT t.symbol, t.name, NULLIF(t.identity_id, ''), t.category, TRUE
		FROM unnest($1::text[], $2::text[], $3::text[], $4::text[]) AS t(symbol, name, identity_id, category)
		ON CONFLICT (symbol) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
		RETURNING `+coinColumns,
		symbols, names, identityIDs, categories)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote coins: %w", err)
	}
	return scanCoins(rows)
}

// ReplaceTradingPairs makes the request set the complete pair list of every
// coin in mainCoinIDs and of every main coin the request mentions. A listed
// coin without requests loses all of its pairs. Pairs that survive keep their
// id so stored price history stays attached.
func (r *CatalogRepository) ReplaceTradingPairs(ctx context.Context, mainCoinIDs []uuid.UUID, requests []models.TradingPairCreateRequest) (int64, error) {
	coinIDs := make([]string, len(requests))
	crossCoinIDs := make([]string, len(requests))
	exchanges := make([]string, len(requests))
	priorities := make([]int32, len(requests))
	mainIDs := make([]string, 0, len(mainCoinIDs)+len(requests))
	seenMain := make(map[uuid.UUID]bool, len(mainCoinIDs)+len(requests))
	addMain := func(id uuid.UUID) {
		if !seenMain[id] {
			seenMain[id] = true
			mainIDs = append(mainIDs, id.String())
		}
	}
	for _, id := range mainCoinIDs {
		addMain(id)
	}
	for i, req := range requests {
		if len(req.Exchanges) == 0 {
			return 0, fmt.Errorf("trading pair %s/%s has no exchanges", req.CoinID, req.CrossCoinID)
		}
		coinIDs[i] = req.CoinID.String()
		crossCoinIDs[i] = req.CrossCoinID.String()
		exchanges[i] = joinExchanges(req.Exchanges)
		priorities[i] = int32(i)
		addMain(req.CoinID)
	}
	if len(mainIDs) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM trading_pairs tp
		WHERE tp.coin_id = ANY($1::uuid[])
		AND NOT EXISTS (
			SELECT 1 FROM unnest($2::text[], $3::text[]) AS k(coin_id, cross_coin_id)
			WHERE k.coin_id::uuid = tp.coin_id AND k.cross_coin_id::uuid = tp.cross_coin_id
		)`, mainIDs, coinIDs, crossCoinIDs); err != nil {
		return 0, fmt.Errorf("failed to delete replaced trading pairs: %w", err)
	}

	var inserted int64
	if len(requests) > 0 {
		tag, err := tx.Exec(ctx, `
			INSERT INTO trading_pairs (coin_id, cross_coin_id, exchanges, priority)
			SELECT t.coin_id::uuid, t.cross_coin_id::uuid, string_to_array(t.exchanges, ','), t.priority
			FROM unnest($1::text[], $2::text[], $3::text[], $4::int[]) AS t(coin_id, cross_coin_id, exchanges, priority)
			ON CONFLICT (coin_id, cross_coin_id) DO UPDATE
			SET exchanges = EXCLUDED.exchanges, priority = EXCLUDED.priority`,
			coinIDs, crossCoinIDs, exchanges, priorities)
		if err != nil {
			return 0, fmt.Errorf("failed to insert trading pairs: %w", err)
		}
		inserted = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit trading pairs: %w", err)
	}
	return inserted, nil
}

// DeleteUnreferencedCoins removes quote-only coins that no trading pair uses.
// Main coins are never deleted here.
func (r *CatalogRepository) DeleteUnreferencedCoins(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM coins c
		WHERE c.quote_only
		AND NOT EXISTS (
			SELECT 1 FROM trading_pairs tp
			WHERE tp.coin_id = c.id OR tp.cross_coin_id = c.id
		)`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete unreferenced coins: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateCoinsMarketData applies all snapshot updates in one statement and
// returns the rows the database actually changed.
func (r *CatalogRepository) UpdateCoinsMarketData(ctx context.Context, requests []models.MarketDataUpdateRequest) ([]models.CoinMarketData, error) {
	if len(requests) == 0 {
		return []models.CoinMarketData{}, nil
	}

	ids := make([]string, len(requests))
	marketCaps := make([]string, len(requests))
	prices := make([]string, len(requests))
	changes := make([]string, len(requests))
	for i, req := range requests {
		ids[i] = req.CoinID.String()
		marketCaps[i] = req.MarketCap.String()
		prices[i] = req.Price.String()
		changes[i] = req.PriceChangePercentage24h.String()
	}

	rows, err := r.pool.Query(ctx, `
		UPDATE coins c
		SET market_cap = u.market_cap::numeric,
			price = u.price::numeric,
			price_change_24h = u.price_change::numeric,
			market_data_updated_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		FROM unnest($1::text[], $2::text[], $3::text[], $4::text[]) AS u(id, market_cap, price, price_change)
		WHERE c.id = u.id::uuid
		RETURNING c.id::text, c.symbol, COALESCE(c.identity_id, ''),
			c.market_cap::text, c.price::text, c.price_change_24h::text, c.market_data_updated_at`,
		ids, marketCaps, prices, changes)
	if err != nil {
		return nil, fmt.Errorf("failed to update market data: %w", err)
	}
	defer rows.Close()

	updated := make([]models.CoinMarketData, 0, len(requests))
	for rows.Next() {
		var (
			id, symbol, identityID   string
			marketCap, price, change *string
			updatedAt                time.Time
		)
		if err := rows.Scan(&id, &symbol, &identityID, &marketCap, &price, &change, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan market data: %w", err)
		}
		coinID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid coin id %q: %w", id, err)
		}
		item := models.CoinMarketData{
			CoinID:     coinID,
			Symbol:     symbol,
			IdentityID: identityID,
			UpdatedAt:  updatedAt,
		}
		if item.MarketCap, err = decimalOrZero(marketCap); err != nil {
			return nil, err
		}
		if item.Price, err = decimalOrZero(price); err != nil {
			return nil, err
		}
		if item.PriceChangePercentage24h, err = decimalOrZero(change); err != nil {
			return nil, err
		}
		updated = append(updated, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate market data: %w", err)
	}
	return updated, nil
}

func scanCoins(rows pgx.Rows) ([]models.Coin, error) {
	defer rows.Close()

	coins := make([]models.Coin, 0)
	for rows.Next() {
		var (
			id, symbol, name, category string
			identityID                 *string
			marketCap, price, change   *string
			quoteOnly                  bool
		)
		if err := rows.Scan(&id, &symbol, &name, &category, &identityID, &marketCap, &price, &change, &quoteOnly); err != nil {
			return nil, fmt.Errorf("failed to scan coin: %w", err)
		}
		coinID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid coin id %q: %w", id, err)
		}
		coin := models.Coin{
			ID:           coinID,
			Symbol:       symbol,
			Name:         name,
			Category:     models.CoinCategory(category),
			IdentityID:   identityID,
			QuoteOnly:    quoteOnly,
			TradingPairs: []models.TradingPair{},
		}
		if coin.MarketCap, err = nullableDecimal(marketCap); err != nil {
			return nil, err
		}
		if coin.Price, err = nullableDecimal(price); err != nil {
			return nil, err
		}
		if coin.PriceChangePercentage24h, err = nullableDecimal(change); err != nil {
			return nil, err
		}
		coins = append(coins, coin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coins: %w", err)
	}
	return coins, nil
}

func attachTradingPairs(rows pgx.Rows, coins []models.Coin) error {
	defer rows.Close()

	index := make(map[uuid.UUID]int, len(coins))
	for i := range coins {
		index[coins[i].ID] = i
	}

	for rows.Next() {
		var (
			id, coinID, crossCoinID, quoteSymbol string
			exchanges                            []string
		)
		if err := rows.Scan(&id, &coinID, &crossCoinID, &quoteSymbol, &exchanges); err != nil {
			return fmt.Errorf("failed to scan trading pair: %w", err)
		}
		pair := models.TradingPair{QuoteSymbol: quoteSymbol}
		var err error
		if pair.ID, err = uuid.Parse(id); err != nil {
			return fmt.Errorf("invalid trading pair id %q: %w", id, err)
		}
		if pair.CoinID, err = uuid.Parse(coinID); err != nil {
			return fmt.Errorf("invalid coin id %q: %w", coinID, err)
		}
		if pair.CrossCoinID, err = uuid.Parse(crossCoinID); err != nil {
			return fmt.Errorf("invalid cross coin id %q: %w", crossCoinID, err)
		}
		pair.Exchanges = make([]models.Exchange, 0, len(exchanges))
		for _, e := range exchanges {
			pair.Exchanges = append(pair.Exchanges, models.Exchange(e))
		}

		if i, ok := index[pair.CoinID]; ok {
			coins[i].TradingPairs = append(coins[i].TradingPairs, pair)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate trading pairs: %w", err)
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func joinExchanges(exchanges []models.Exchange) string {
	parts := make([]string, len(exchanges))
	for i, e := range exchanges {
		parts[i] = string(e)
	}
	return strings.Join(parts, ",")
}

func nullableDecimal(value *string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*value)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric value %q: %w", *value, err)
	}
	return &d, nil
}

func decimalOrZero(value *string) (decimal.Decimal, error) {
	d, err := nullableDecimal(value)
	if err != nil || d == nil {
		return decimal.Zero, err
	}
	return *d, nil
}
