package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	perrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ProductInput is a product payload as decoded from the wire.
// Fields stay untyped so type mistakes can be reported per field.
type ProductInput struct {
	Name     any `json:"name"`
	Quantity any `json:"quantity"`
}

// SaleItemInput is one line item of a sale payload as decoded from the wire.
type SaleItemInput struct {
	ProductID any `json:"productId"`
	Quantity  any `json:"quantity"`
}

// productCommand is a product payload that passed type checks.
type productCommand struct {
	Name     string `json:"name"     validate:"min=5"`
	Quantity int64  `json:"quantity" validate:"min=1,max=2147483647"`
}

type saleItemCommand struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int64  `json:"quantity"  validate:"min=1,max=2147483647"`
}

type saleCommand struct {
	Items []saleItemCommand `json:"itemsSold" validate:"required,gt=0,dive"`
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var errNotNumber = errors.New("not a number")
var errNotInteger = errors.New("not an integer")

// parseID checks the raw identifier format before any lookup. onError is returned as is.
func parseID(raw string, onError *perrors.Error) (uuid.UUID, error) {
	if err := validate.Var(raw, "required,uuid"); err != nil {
		return uuid.Nil, onError
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, onError
	}
	return id, nil
}

// validateProduct applies the product rules in order, name first, and reports the first failure.
func validateProduct(in ProductInput) (*productCommand, error) {
	var cmd productCommand

	switch name := in.Name.(type) {
	case nil:
		return nil, perrors.InvalidData(`"name" is required`)
	case string:
		cmd.Name = name
	default:
		return nil, perrors.InvalidData(`"name" must be a string`)
	}
	if err := validate.StructPartial(cmd, "Name"); err != nil {
		return nil, fieldError(err)
	}

	if in.Quantity == nil {
		return nil, perrors.InvalidData(`"quantity" is required`)
	}
	q, err := toInt64(in.Quantity)
	switch {
	case errors.Is(err, errNotNumber):
		return nil, perrors.InvalidData(`"quantity" must be a number`)
	case errors.Is(err, errNotInteger):
		return nil, perrors.InvalidData(`"quantity" must be an integer`)
	}
	cmd.Quantity = q
	if err := validate.StructPartial(cmd, "Quantity"); err != nil {
		return nil, fieldError(err)
	}

	return &cmd, nil
}

// validateSaleItems checks every item before anything is written.
// Any malformed item fails the whole payload with a single message.
func validateSaleItems(in []SaleItemInput) (*saleCommand, error) {
	cmd := saleCommand{Items: make([]saleItemCommand, 0, len(in))}
	for _, it := range in {
		productID, ok := it.ProductID.(string)
		if !ok {
			return nil, perrors.ErrWrongSaleItems
		}
		q, err := toInt64(it.Quantity)
		if err != nil {
			return nil, perrors.ErrWrongSaleItems
		}
		cmd.Items = append(cmd.Items, saleItemCommand{ProductID: productID, Quantity: q})
	}
	if err := validate.Struct(cmd); err != nil {
		return nil, perrors.ErrWrongSaleItems
	}
	return &cmd, nil
}

// toInt64 accepts JSON numbers only. Values outside the int32 range are clamped
// just past it so the range rules still report them.
func toInt64(v any) (int64, error) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return clamp(i), nil
		}
		// overflow parses to ±Inf, the range rules report it
		parsed, err := n.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, errNotNumber
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		return clamp(int64(n)), nil
	case int32:
		return int64(n), nil
	case int64:
		return clamp(n), nil
	default:
		return 0, errNotNumber
	}
	if math.IsNaN(f) {
		return 0, errNotNumber
	}
	if !math.IsInf(f, 0) && math.Trunc(f) != f {
		return 0, errNotInteger
	}
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32 + 1, nil
	case f < math.MinInt32:
		return math.MinInt32 - 1, nil
	}
	return int64(f), nil
}

func clamp(i int64) int64 {
	switch {
	case i > math.MaxInt32:
		return math.MaxInt32 + 1
	case i < math.MinInt32:
		return math.MinInt32 - 1
	}
	return i
}

// fieldError turns the first validator failure into a client message.
func fieldError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return perrors.InvalidData(err.Error())
	}
	fe := errs[0]
	field := fe.Field()
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return perrors.InvalidData(fmt.Sprintf("%q is required", field))
	case "min":
		if isString {
			return perrors.InvalidData(fmt.Sprintf("%q length must be at least %s characters long", field, fe.Param()))
		}
		return perrors.InvalidData(fmt.Sprintf("%q must be larger than or equal to %s", field, fe.Param()))
	case "max":
		if isString {
			return perrors.InvalidData(fmt.Sprintf("%q length must be less than or equal to %s characters long", field, fe.Param()))
		}
		return perrors.InvalidData(fmt.Sprintf("%q must be less than or equal to %s", field, fe.Param()))
	}
	return perrors.InvalidData(fmt.Sprintf("%q is invalid", field))
}
