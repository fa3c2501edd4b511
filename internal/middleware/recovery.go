package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/util"
)

// Recovery turns a panic into the generic 500 body. The panic value is
// logged by RespondWithAPIError and never sent to the client.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(gin.DefaultErrorWriter, func(c *gin.Context, recovered any) {
		util.RespondWithAPIError(c, errors.InternalError(fmt.Sprintf("panic: %v", recovered)))
	})
}

// NoRoute answers unknown paths with the 404 body
func NoRoute(c *gin.Context) {
	util.RespondWithAPIError(c, errors.NotFound("Route"))
}

// NoMethod answers a known path called with the wrong verb
func NoMethod(c *gin.Context) {
	util.RespondWithAPIError(c, errors.MethodNotAllowed())
}
