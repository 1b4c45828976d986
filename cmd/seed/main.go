// Command seed fills a development database with demo users and threads.
package main

import (
	"context"
	"flag"
	"log"

	"lionboard/internal/config"
	"lionboard/internal/database"
	"lionboard/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of student accounts to create")
	numThreads := flag.Int("threads", 50, "Number of threads to create")
	revealRate := flag.Float64("reveal-rate", 0.15, "Share of items whose author reveals their identity")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, seed.Options{RevealRate: *revealRate})

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	students, moderator, err := s.SeedUsers(ctx, *numUsers)
	if err != nil {
		log.Fatalf("User seeding failed: %v", err)
	}
	n, err := s.SeedThreads(ctx, students, moderator, *numThreads)
	if err != nil {
		log.Fatalf("Thread seeding failed after %d threads: %v", n, err)
	}

	log.Printf("Seeded %d students, 1 moderator (%s) and %d threads", len(students), moderator.Email, n)
	log.Printf("All seeded accounts use the password: %s", seed.DefaultPassword)
}
