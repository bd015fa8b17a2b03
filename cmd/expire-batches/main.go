// expire-batches marks available batches past their expiry date as expired and takes
// their remaining quantity out of finished-goods stock. Intended for a daily scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/models"
	"github.com/mmdatafocus/consumables_backend/utils"
)

func main() {
	asOfFlag := flag.String("as-of", "", "Optional: expire batches with expiry_date on or before this date (YYYY-MM-DD). Defaults to now.")
	flag.Parse()

	asOf := time.Now().UTC()
	if *asOfFlag != "" {
		t, err := time.Parse("2006-01-02", *asOfFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --as-of: %v\n", err)
			os.Exit(1)
		}
		asOf = t.Add(24*time.Hour - time.Nanosecond)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := utils.SetUserIdInContext(context.Background(), 0)
	ctx = utils.SetUserNameInContext(ctx, "ExpireBatches")

	expired, err := models.ExpireBatches(ctx, asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expired %d batches before failing: %v\n", expired, err)
		os.Exit(1)
	}
	fmt.Printf("expired %d batches as of %s\n", expired, asOf.Format(time.RFC3339))
}
