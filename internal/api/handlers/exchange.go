package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/celebrum-catalog/internal/exchange"
	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/utils"
)

// BreakerMonitor exposes the circuit breakers guarding exchange calls.
type BreakerMonitor interface {
	BreakerStatuses() []exchange.BreakerStatus
	ResetBreakers(exchange models.Exchange) error
}

// ExchangeHandler reports and resets exchange circuit breakers
type ExchangeHandler struct {
	breakers BreakerMonitor
}

func NewExchangeHandler(breakers BreakerMonitor) *ExchangeHandler {
	return &ExchangeHandler{breakers: breakers}
}

// GetBreakers lists every breaker with its state and counters
// @Summary Get exchange circuit breakers
// @Tags exchanges
// @Produce json
// @Router /api/v1/exchanges/breakers [get]
func (h *ExchangeHandler) GetBreakers(c *gin.Context) {
	respondData(c, http.StatusOK, h.breakers.BreakerStatuses())
}

// ResetBreakers closes the breakers of one exchange
// @Summary Reset exchange circuit breakers
// @Tags exchanges
// @Param exchange path string true "Exchange id"
// @Router /api/v1/exchanges/breakers/{exchange}/reset [post]
func (h *ExchangeHandler) ResetBreakers(c *gin.Context) {
	ex, err := models.ParseExchange(c.Param("exchange"))
	if err != nil {
		respondError(c, utils.NewValidationError(err.Error()))
		return
	}
	if err := h.breakers.ResetBreakers(ex); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"exchange": ex, "reset": true})
}
