// Package errors provides custom error types for product and sale operations.
package errors

import "errors"

// Error codes carried in the {"err":{"code","message"}} envelope.
const (
	CodeInvalidData  = "invalid_data"
	CodeNotFound     = "not_found"
	CodeStockProblem = "stock_problem"
)

// Error is a client-facing error with a stable code and message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// InvalidData returns an invalid_data error with the given message.
func InvalidData(message string) *Error {
	return &Error{Code: CodeInvalidData, Message: message}
}

var ErrWrongID = InvalidData("Wrong id format")
var ErrWrongSaleID = InvalidData("Wrong sale ID format")
var ErrWrongSaleItems = InvalidData("Wrong product ID or invalid quantity")
var ErrProductAlreadyExists = InvalidData("Product already exists")
var ErrInvalidBody = InvalidData("Invalid request body")

var ErrSaleNotFoundResponse = &Error{Code: CodeNotFound, Message: "Sale not found"}
var ErrProductNotFoundResponse = &Error{Code: CodeNotFound, Message: "Product not found"}

var ErrStockProblem = &Error{Code: CodeStockProblem, Message: "Such amount is not permitted to sell"}
var ErrStockLimit = &Error{Code: CodeStockProblem, Message: "Restored stock would exceed the maximum quantity"}

// Store level errors.

var ErrProductNotFound = errors.New("product not found")
var ErrSaleNotFound = errors.New("sale not found")
var ErrInsufficientStock = errors.New("insufficient stock")
var ErrStockOverflow = errors.New("stock would exceed the maximum quantity")
var ErrProductExists = errors.New("product with this name already exists")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")
