// outbox-replay puts DEAD workflow messages back to PENDING so the dispatcher retries them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/models"
)

func main() {
	recordID := flag.Int("record-id", 0, "Optional: requeue only this outbox record. Defaults to every DEAD record.")
	dryRun := flag.Bool("dry-run", false, "List what would be requeued without changing anything")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	ctx := context.Background()

	var ids []int
	if *recordID > 0 {
		ids = []int{*recordID}
	} else {
		dead, err := models.ListDeadOutboxRecords(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list dead records: %v\n", err)
			os.Exit(1)
		}
		for _, d := range dead {
			fmt.Printf("DEAD id=%d %s %s ref=%d attempts=%d\n", d.RecordId, d.ReferenceType, d.Action, d.ReferenceId, d.PublishAttempts)
			ids = append(ids, d.RecordId)
		}
	}
	if *dryRun {
		fmt.Printf("%d records would be requeued\n", len(ids))
		return
	}

	failed := 0
	for _, id := range ids {
		if _, err := models.RequeueOutboxRecord(ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "requeue %d: %v\n", id, err)
			failed++
		}
	}
	fmt.Printf("requeued %d records, %d failed\n", len(ids)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
