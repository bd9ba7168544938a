// seed creates a dev project with a fresh API key and a handful of sample
// triggers against httpbin.org, covering recurring and on-demand schedules
// plus a mix of success/retry/timeout outcomes.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cronback-io/cronback/internal/apikey"
	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/postgres"
	"github.com/cronback-io/cronback/internal/repository"
)

const seedProjectName = "seed-dev-local"
const seedCellID = "cell-1"

type triggerSpec struct {
	name       string
	url        string
	method     string
	cron       string // empty means on-demand, no schedule
	maxRetries int
}

var triggerSpecs = []triggerSpec{
	// Recurring, happy path
	{"seed-recurring-post", "https://httpbin.org/post", "POST", "*/5 * * * *", 3},
	{"seed-recurring-get", "https://httpbin.org/get", "GET", "*/10 * * * *", 3},

	// Recurring, will fail and retry
	{"seed-recurring-500", "https://httpbin.org/status/500", "POST", "*/15 * * * *", 3},
	{"seed-recurring-503", "https://httpbin.org/status/503", "POST", "*/15 * * * *", 2},

	// On-demand, fired only by an explicit run request
	{"seed-ondemand-post", "https://httpbin.org/post", "POST", "", 3},
	{"seed-ondemand-404", "https://httpbin.org/status/404", "GET", "", 1},
	{"seed-ondemand-timeout", "https://httpbin.org/delay/35", "GET", "", 2},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	projectRepo := postgres.NewProjectRepository(pool)
	triggerRepo := postgres.NewTriggerRepository(pool)

	rawKey, hash, err := apikey.Generate()
	if err != nil {
		log.Fatalf("generate api key: %v", err)
	}
	prefix, err := apikey.LookupPrefix(rawKey)
	if err != nil {
		log.Fatalf("lookup prefix: %v", err)
	}

	project, err := projectRepo.Create(ctx, domain.Project{
		ID:           domain.NewProjectID(),
		Name:         seedProjectName,
		CellID:       seedCellID,
		APIKeyHash:   hash,
		APIKeyPrefix: prefix,
	})
	if err != nil {
		log.Fatalf("create project: %v", err)
	}

	var created, skipped int
	for _, spec := range triggerSpecs {
		trigger := domain.Trigger{
			ID:        domain.NewTriggerID(project.ID),
			ProjectID: project.ID,
			CellID:    seedCellID,
			Name:      spec.name,
			Action: domain.Action{
				Kind:           domain.WebhookActionKind,
				URL:            spec.url,
				Method:         spec.method,
				TimeoutSeconds: 30,
			},
			RetryPolicy: domain.RetryPolicy{
				Kind:            retryKindFor(spec.maxRetries),
				MaxNumAttempts:  spec.maxRetries,
				DelaySeconds:    5,
				MaxDelaySeconds: 60,
			},
			Status: domain.StatusActive,
		}
		if spec.cron != "" {
			trigger.Schedule = &domain.Schedule{
				Kind:     domain.RecurringSchedule,
				Cron:     spec.cron,
				Timezone: "UTC",
			}
		}

		_, effect, err := triggerRepo.Upsert(ctx, trigger, repository.Precondition{Kind: repository.PreconditionNone})
		if err != nil {
			log.Fatalf("upsert trigger %s: %v", spec.name, err)
		}
		if effect == "created" {
			created++
		} else {
			skipped++
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Project ID:   %s\n", project.ID)
	fmt.Printf("  API key:      %s  (shown once — store it now)\n", rawKey)
	fmt.Printf("  Triggers:     %d created, %d already existed\n", created, skipped)
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1 — exchange the API key for a JWT:")
	fmt.Println()
	fmt.Printf("    curl -s localhost:8080/auth/token -d '{\"api_key\":%q}'\n", rawKey)
	fmt.Println()
	fmt.Println("  Step 2 — fire an on-demand trigger:")
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Println("    curl -s -X POST localhost:8080/triggers/seed-ondemand-post/run -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Printf("  Recurring triggers fire on their own cron schedule starting %s.\n", time.Now().UTC().Format(time.RFC3339))
}

func retryKindFor(maxRetries int) domain.RetryPolicyKind {
	if maxRetries == 0 {
		return domain.RetryNone
	}
	return domain.RetryExponential
}
