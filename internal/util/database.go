package util

import (
	"errors"

	"github.com/gin-gonic/gin"
	apierrors "github.com/zfogg/traveltweets/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HandleDBError responds for a database error and reports whether it did.
// A missing row becomes a 404 for resourceName, anything else a 500.
func HandleDBError(c *gin.Context, err error, resourceName string) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		RespondNotFound(c, resourceName)
		return true
	}

	RespondWithAPIError(c, apierrors.InternalError("query "+resourceName+": "+err.Error()))
	return true
}

// IsDuplicateKey reports whether err is a unique constraint violation.
// The connection must be opened with TranslateError enabled.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// Increment is an UpdateColumn value adding one to column
func Increment(column string) clause.Expr {
	return gorm.Expr(column + " + 1")
}

// Decrement subtracts one from column without going below zero. It is the
// portable form of GREATEST(column - 1, 0).
func Decrement(column string) clause.Expr {
	return gorm.Expr("CASE WHEN " + column + " > 0 THEN " + column + " - 1 ELSE 0 END")
}
