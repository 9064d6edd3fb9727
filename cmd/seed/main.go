package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"course-billing/internal/config"
	pg "course-billing/internal/infra/db/postgres"
	"course-billing/internal/infra/logging"
	"course-billing/internal/usecase"
)

// Seeds a handful of access codes for exercising the checkout flow locally.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	codeRepo := pg.NewAccessCodeRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	codeUC := usecase.NewCodeUseCase(codeRepo, paymentRepo, logger)

	// If codes already exist, do nothing.
	existing, err := codeUC.List(ctx)
	if err != nil {
		log.Fatalf("list codes: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d access codes already present. No changes.\n", len(existing))
		for _, c := range existing {
			fmt.Printf("  - %s (%s, used=%d)\n", c.Code, c.Title, c.UsedCount)
		}
		return
	}

	limited := 25
	expiry := time.Now().AddDate(0, 3, 0)
	seed := []struct {
		Title     string
		MaxUses   *int
		ExpiresAt *time.Time
	}{
		{"Go Fundamentals", nil, nil},
		{"Distributed Systems Cohort", &limited, &expiry},
		{"Early Bird Workshop", &limited, nil},
	}

	for _, s := range seed {
		c, err := codeUC.Create(ctx, s.Title, "", s.MaxUses, s.ExpiresAt)
		if err != nil {
			log.Fatalf("create code %q: %v", s.Title, err)
		}
		fmt.Printf("seeded: %s (id=%s, title=%s)\n", c.Code, c.ID, c.Title)
	}

	fmt.Println("Seeding complete.")
}
