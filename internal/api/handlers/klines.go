package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/utils"
)

// KlineResolver finds candle series with exchange fallback.
type KlineResolver interface {
	GetKlineDataForPair(ctx context.Context, coin models.Coin, pair models.TradingPair, interval models.KlineInterval, window models.KlineWindow, limit int) (models.PairKlineResponse, error)
	GetFirstSuccessfulKlineDataPerCoin(ctx context.Context, req models.KlineBatchRequest) []models.PairKlineResponse
}

// CoinLookup loads catalog coins with their trading pairs.
type CoinLookup interface {
	GetCoinsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Coin, error)
}

// KlineHistory reads stored candles.
type KlineHistory interface {
	GetKlines(ctx context.Context, tradingPairID uuid.UUID, interval models.KlineInterval, limit int) ([]models.Kline, error)
}

// PairKlineRequest asks for candles of one catalog trading pair.
type PairKlineRequest struct {
	CoinID        uuid.UUID            `json:"coin_id" binding:"required"`
	TradingPairID uuid.UUID            `json:"trading_pair_id" binding:"required"`
	Interval      models.KlineInterval `json:"interval"`
	Window        models.KlineWindow   `json:"window"`
	Limit         int                  `json:"limit"`
}

// KlineHandler handles candle endpoints
type KlineHandler struct {
	resolver        KlineResolver
	coins           CoinLookup
	history         KlineHistory
	defaultInterval models.KlineInterval
	defaultLimit    int
}

func NewKlineHandler(resolver KlineResolver, coins CoinLookup, history KlineHistory, defaultInterval models.KlineInterval, defaultLimit int) *KlineHandler {
	return &KlineHandler{
		resolver:        resolver,
		coins:           coins,
		history:         history,
		defaultInterval: defaultInterval,
		defaultLimit:    defaultLimit,
	}
}

// GetBatchKlines resolves the first available candle series of each coin
// @Summary Batch klines with exchange fallback
// @Tags klines
// @Accept json
// @Produce json
// @Router /api/v1/klines/batch [post]
func (h *KlineHandler) GetBatchKlines(c *gin.Context) {
	var req models.KlineBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewBadRequestError("invalid request body: %v", err))
		return
	}
	interval, limit, err := h.normalize(req.Interval, req.Limit, req.Window)
	if err != nil {
		respondError(c, err)
		return
	}
	req.Interval, req.Limit = interval, limit

	respondData(c, http.StatusOK, h.resolver.GetFirstSuccessfulKlineDataPerCoin(c.Request.Context(), req))
}

// GetPairKlines resolves candles for one trading pair of a catalog coin
// @Summary Klines for a trading pair
// @Tags klines
// @Accept json
// @Produce json
// @Router /api/v1/klines/pair [post]
func (h *KlineHandler) GetPairKlines(c *gin.Context) {
	var req PairKlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewBadRequestError("invalid request body: %v", err))
		return
	}
	interval, limit, err := h.normalize(req.Interval, req.Limit, req.Window)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	coins, err := h.coins.GetCoinsByIDs(ctx, []uuid.UUID{req.CoinID})
	if err != nil {
		respondError(c, utils.NewInternalError("load coin", err))
		return
	}
	if len(coins) == 0 {
		respondError(c, utils.NewNotFoundError("coin %s not found", req.CoinID))
		return
	}
	coin := coins[0]

	var pair *models.TradingPair
	for i := range coin.TradingPairs {
		if coin.TradingPairs[i].ID == req.TradingPairID {
			pair = &coin.TradingPairs[i]
			break
		}
	}
	if pair == nil {
		respondError(c, utils.NewNotFoundError("trading pair %s not found for %s", req.TradingPairID, coin.Symbol))
		return
	}

	resp, err := h.resolver.GetKlineDataForPair(ctx, coin, *pair, interval, req.Window, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, resp)
}

// GetKlineHistory returns stored candles of a trading pair
// @Summary Stored klines
// @Tags klines
// @Param trading_pair_id path string true "Trading pair id"
// @Param interval query string false "Candle interval"
// @Param limit query int false "Maximum candles"
// @Router /api/v1/klines/history/{trading_pair_id} [get]
func (h *KlineHandler) GetKlineHistory(c *gin.Context) {
	pairID, err := uuid.Parse(c.Param("trading_pair_id"))
	if err != nil {
		respondError(c, utils.NewBadRequestError("invalid trading pair id %q", c.Param("trading_pair_id")))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			respondError(c, utils.NewBadRequestError("invalid limit %q", raw))
			return
		}
	}
	interval, limit, err := h.normalize(models.KlineInterval(c.Query("interval")), limit, models.KlineWindow{})
	if err != nil {
		respondError(c, err)
		return
	}

	klines, err := h.history.GetKlines(c.Request.Context(), pairID, interval, limit)
	if err != nil {
		respondError(c, utils.NewInternalError("load price history", err))
		return
	}
	respondData(c, http.StatusOK, klines)
}

func (h *KlineHandler) normalize(interval models.KlineInterval, limit int, window models.KlineWindow) (models.KlineInterval, int, error) {
	if interval == "" {
		interval = h.defaultInterval
	}
	if !interval.IsValid() {
		return "", 0, utils.NewValidationErrorf("unsupported interval %q", interval)
	}
	if limit < 0 {
		return "", 0, utils.NewValidationErrorf("limit must not be negative, got %d", limit)
	}
	if limit == 0 {
		limit = h.defaultLimit
	}
	if window.StartTime > 0 && window.EndTime > 0 && window.StartTime >= window.EndTime {
		return "", 0, utils.NewValidationError("window start must be before its end")
	}
	return interval, limit, nil
}
