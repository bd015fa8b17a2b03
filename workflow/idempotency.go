package workflow

import (
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/consumables_backend/models"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

// startedTTL is how long a STARTED key blocks redelivery before it counts as abandoned.
const startedTTL = 5 * time.Minute

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func findIdempotencyKey(tx *gorm.DB, handlerName, messageId string) (*models.IdempotencyKey, error) {
	var existing models.IdempotencyKey
	err := tx.Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		Limit(1).Find(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing.ID == 0 {
		return nil, nil
	}
	return &existing, nil
}

// BeginIdempotency records STARTED for (handler, message). skip is true when the message
// already succeeded and must not be applied again.
func BeginIdempotency(tx *gorm.DB, handlerName, messageId string) (skip bool, err error) {
	existing, err := findIdempotencyKey(tx, handlerName, messageId)
	if err != nil {
		return false, err
	}
	if existing == nil {
		key := models.IdempotencyKey{
			HandlerName: handlerName,
			MessageId:   messageId,
			Status:      models.IdempotencyStatusStarted,
		}
		if err := tx.Create(&key).Error; err == nil {
			return false, nil
		} else if !isDuplicateKeyErr(err) {
			return false, err
		}
		// lost the insert race
		return false, ErrIdempotencyInProgress
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		if time.Since(existing.UpdatedAt) < startedTTL {
			return false, ErrIdempotencyInProgress
		}
	}
	return false, tx.Model(&models.IdempotencyKey{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
}

func MarkIdempotencySucceeded(tx *gorm.DB, handlerName, messageId string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}).Error
}

func MarkIdempotencyFailed(tx *gorm.DB, handlerName, messageId string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg}).Error
}
