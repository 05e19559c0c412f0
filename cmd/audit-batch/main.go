// Command audit-batch runs one migration batch for an org from the command
// line. Operators use it for dry runs against a single org before handing the
// migration to the portal UI, and for re-auditing a handful of subscribers
// after a mapping fix.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/cratecrew/boxops/internal/config"
	"github.com/cratecrew/boxops/internal/domain"
	"github.com/cratecrew/boxops/internal/recharge"
	"github.com/cratecrew/boxops/internal/repository/postgres"
	"github.com/cratecrew/boxops/internal/service/migration"
	"github.com/cratecrew/boxops/internal/shopify"
	"github.com/cratecrew/boxops/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	orgID := flag.String("org", "", "organization ID (required)")
	runID := flag.String("run", "", "existing run ID; empty creates a new run sized to the batch")
	subscribers := flag.String("subscribers", "", "comma-separated subscriber IDs to audit")
	listCustomers := flag.Bool("list-customers", false, "list active Recharge customers for the org and exit")
	page := flag.Int("page", 1, "Recharge page for -list-customers")
	complete := flag.Bool("complete", false, "mark the run completed after the batch")
	flag.Parse()

	if *orgID == "" {
		fmt.Fprintln(os.Stderr, "usage: audit-batch -org <id> [-run <id>] -subscribers a,b,c")
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if *listCustomers {
		client := recharge.NewClient(cfg.Recharge)
		customers, err := client.ListActiveCustomers(ctx, *page, 250)
		if err != nil {
			log.Fatalf("Failed to list Recharge customers: %v", err)
		}
		fmt.Printf("Active Recharge customers (page %d): %d\n", *page, len(customers))
		for _, c := range customers {
			fmt.Printf("  %-12s shopify=%-16s %s\n", c.ID, c.ShopifyCustomerID, c.Email)
		}
		return
	}

	subIDs := splitIDs(*subscribers)
	if len(subIDs) == 0 {
		fmt.Fprintln(os.Stderr, "no subscribers given; use -subscribers a,b,c")
		os.Exit(2)
	}
	if len(subIDs) > worker.MaxBatchSize {
		fmt.Fprintf(os.Stderr, "batch of %d exceeds limit of %d\n", len(subIDs), worker.MaxBatchSize)
		os.Exit(2)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(3)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}

	svc := migration.NewService(
		postgres.NewAuditRepo(db),
		postgres.NewRunRepo(db),
		postgres.NewMappingRepo(db),
	)

	if *runID == "" {
		run, err := svc.StartRun(ctx, *orgID, len(subIDs))
		if err != nil {
			log.Fatalf("Failed to start run: %v", err)
		}
		*runID = run.ID
		fmt.Printf("Started run %s (%d subscribers)\n", run.ID, len(subIDs))
	}

	// No Redis gating for a single CLI batch; the inter-subscriber delay is
	// pacing enough for one operator.
	runner := worker.NewAuditRunner(
		svc,
		postgres.NewSubscriberRepo(db),
		postgres.NewUnmappedRepo(db),
		shopify.NewClient(cfg.Shopify),
		nil,
		cfg.Audit.InterSubscriberDelay(),
	)

	summary, err := runner.ProcessBatch(ctx, *orgID, *runID, subIDs)
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}

	fmt.Println("---------------------------------------------------------")
	fmt.Printf("Run:       %s\n", *runID)
	fmt.Printf("Processed: %d\n", summary.Processed)
	fmt.Printf("Clean:     %d\n", summary.Clean)
	fmt.Printf("Flagged:   %d\n", summary.Flagged)
	fmt.Printf("Errors:    %d\n", summary.Errors)

	if *complete {
		if err := svc.CompleteRun(ctx, *orgID, *runID, domain.RunCompleted); err != nil {
			log.Fatalf("Failed to complete run: %v", err)
		}
		fmt.Println("Run marked completed")
	}
}

func splitIDs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}
