package utils

import (
	"context"
	"errors"

	"github.com/mmdatafocus/consumables_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrorRecordNotFound = errors.New("record not found")

// FetchModel loads one row by id with the given associations preloaded.
// (may return ErrorRecordNotFound)
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	dbCtx := config.GetDB().WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// LockModel re-reads a row inside tx with SELECT ... FOR UPDATE.
// (may return ErrorRecordNotFound)
func LockModel[T any](tx *gorm.DB, id int, associations ...string) (*T, error) {
	q := tx.Clauses(clause.Locking{Strength: "UPDATE"})
	for _, field := range associations {
		q = q.Preload(field)
	}
	var result T
	if err := q.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// ValidateResourceId checks that a row with id exists.
func ValidateResourceId[T any](ctx context.Context, tx *gorm.DB, id interface{}) error {
	var count int64
	var model T
	if err := tx.WithContext(ctx).Model(&model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}
