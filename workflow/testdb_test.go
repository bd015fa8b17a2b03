package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/models"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBSeq int64

func setupTestDB(t *testing.T) context.Context {
	t.Helper()
	dsn := fmt.Sprintf("file:workflow_test_%d?mode=memory&cache=shared&_busy_timeout=5000", atomic.AddInt64(&testDBSeq, 1))
	conn, err := gorm.Open(sqlite.Open(dsn), config.InitGormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	prev := config.GetDB()
	config.UseDB(conn)
	t.Cleanup(func() {
		config.UseDB(prev)
		_ = sqlDB.Close()
	})

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	if err := models.MigrateTable(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return ctx
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// enqueue writes one outbox record and returns it as stored.
func enqueue(t *testing.T, ctx context.Context, refType models.WorkflowReferenceType, action models.WorkflowAction, refId int, payload interface{}) models.WorkflowMessageRecord {
	t.Helper()
	if err := models.PublishWorkflowEvent(ctx, config.GetDB(), refId, refType, action, payload); err != nil {
		t.Fatalf("publish workflow event: %v", err)
	}
	var record models.WorkflowMessageRecord
	if err := config.GetDB().Order("id DESC").First(&record).Error; err != nil {
		t.Fatalf("load outbox record: %v", err)
	}
	return record
}

func loadRecord(t *testing.T, id int) models.WorkflowMessageRecord {
	t.Helper()
	var record models.WorkflowMessageRecord
	if err := config.GetDB().First(&record, id).Error; err != nil {
		t.Fatalf("load outbox record %d: %v", id, err)
	}
	return record
}

func notifications(t *testing.T, ctx context.Context, kind models.NotificationKind) []*models.Notification {
	t.Helper()
	all, err := models.ListNotifications(ctx, false)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	var results []*models.Notification
	for _, n := range all {
		if n.Kind == kind {
			results = append(results, n)
		}
	}
	return results
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
