package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrInvalidState         = errors.New("invalid state")
	ErrInsufficientMaterial = errors.New("insufficient raw material")
	ErrNegativeStock        = errors.New("stock would become negative")
	ErrNoRecipe             = errors.New("no recipe defined")
	ErrInvalidMargin        = errors.New("margin produces a negative unit price")
	ErrRecordNotFound       = utils.ErrorRecordNotFound
)

// ValidationError carries per-field reasons; errors.Is(err, ErrValidation) holds.
type ValidationError struct {
	Err     error
	Details map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Err.Error()
	}
	parts := make([]string, 0, len(e.Details))
	for _, k := range sortedKeys(e.Details) {
		parts = append(parts, k+": "+e.Details[k])
	}
	return e.Err.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidationError(field string, reason string) error {
	return &ValidationError{Err: ErrValidation, Details: map[string]string{field: reason}}
}

func validationErrorFromMap(details map[string]string) error {
	return &ValidationError{Err: ErrValidation, Details: details}
}

// InvalidStateError reports a transition attempted from a state that does not permit it.
type InvalidStateError struct {
	Entity string
	Id     int
	From   string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: cannot %s %s %d in status %q", ErrInvalidState, e.Action, e.Entity, e.Id, e.From)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

func invalidState(entity string, id int, from string, action string) error {
	return &InvalidStateError{Entity: entity, Id: id, From: from, Action: action}
}

type MaterialShortage struct {
	RawMaterialId int             `json:"raw_material_id"`
	Name          string          `json:"name"`
	Required      decimal.Decimal `json:"required"`
	Available     decimal.Decimal `json:"available"`
	Shortage      decimal.Decimal `json:"shortage"`
}

type InsufficientMaterialError struct {
	Shortages []MaterialShortage
}

func (e *InsufficientMaterialError) Error() string {
	names := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		names = append(names, fmt.Sprintf("%s short by %s", s.Name, s.Shortage.String()))
	}
	return ErrInsufficientMaterial.Error() + ": " + strings.Join(names, ", ")
}

func (e *InsufficientMaterialError) Unwrap() error { return ErrInsufficientMaterial }

type NegativeStockError struct {
	Item      string
	ItemId    int
	OnHand    decimal.Decimal
	Requested decimal.Decimal
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("%s: %s %d has %s, requested %s", ErrNegativeStock, e.Item, e.ItemId, e.OnHand.String(), e.Requested.String())
}

func (e *NegativeStockError) Unwrap() error { return ErrNegativeStock }

type InvalidMarginError struct {
	Mrp    decimal.Decimal
	Margin decimal.Decimal
}

func (e *InvalidMarginError) Error() string {
	return fmt.Sprintf("%s: mrp %s margin %s%%", ErrInvalidMargin, e.Mrp.String(), e.Margin.String())
}

func (e *InvalidMarginError) Unwrap() error { return ErrInvalidMargin }

// prefixValidation scopes the field names of ve, e.g. "quantity" -> "items[2].quantity".
func prefixValidation(ve *ValidationError, prefix string) error {
	details := make(map[string]string, len(ve.Details))
	for k, v := range ve.Details {
		details[prefix+"."+k] = v
	}
	return &ValidationError{Err: ve.Err, Details: details}
}
