package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/irfndi/celebrum-catalog/internal/utils"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondError(c *gin.Context, err error) {
	c.JSON(utils.HTTPStatus(err), ErrorResponse{
		Error:   string(utils.KindOf(err)),
		Message: err.Error(),
	})
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}
