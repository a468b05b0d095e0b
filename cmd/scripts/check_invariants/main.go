package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/launchpad/backend/internal/config"
	"github.com/launchpad/backend/internal/lifecycle"
	"github.com/launchpad/backend/internal/models"
	"github.com/launchpad/backend/internal/services"
)

// Audits every project aggregate and lists stuck sweep jobs.
// With -retry, due sweep jobs are run once before exiting.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	retry := flag.Bool("retry", false, "run due sweep jobs once")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := models.OpenDB(&cfg.Database)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Connected to database successfully!")
	fmt.Println("")

	var projects []models.Project
	if err := db.Order("id").Find(&projects).Error; err != nil {
		fmt.Printf("Failed to query projects: %v\n", err)
		os.Exit(1)
	}

	broken := 0
	fmt.Printf("%-6s %-40s %s\n", "ID", "Name", "Problem")
	fmt.Println("--------------------------------------------------------------------------------")
	for i := range projects {
		p := &projects[i]
		if err := lifecycle.CheckInvariants(p); err != nil {
			broken++
			name := truncate(p.Name, 40)
			fmt.Printf("%-6d %-40s %v\n", p.ID, name, err)
		}
	}
	fmt.Println("")
	fmt.Printf("Projects checked: %d, inconsistent: %d\n", len(projects), broken)

	var jobs []models.SweepJob
	if err := db.Order("id").Find(&jobs).Error; err != nil {
		fmt.Printf("Failed to query sweep jobs: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Outstanding sweep jobs: %d\n", len(jobs))
	for _, job := range jobs {
		if job.Attempts >= cfg.Sweep.MaxAttempts {
			fmt.Printf("  job %d (user %d) exhausted after %d attempts: %s\n", job.ID, job.UserID, job.Attempts, job.LastError)
		}
	}

	if *retry && len(jobs) > 0 {
		queue := services.NewTaskQueue(&cfg.Redis)
		if syncQueue, ok := queue.(*services.SyncQueue); ok {
			syncQueue.SetProcessor(services.NewNotificationService(db, nil).Deliver)
		}
		store := services.NewProjectStore(db, cfg.Database.MaxConflictRetries)
		sweeper := services.NewSweepService(db, store, services.NewQueueNotifier(queue), cfg.Sweep.MaxAttempts)
		done := sweeper.RetryPending(context.Background())
		queue.Close()
		fmt.Printf("Sweep jobs completed: %d\n", done)
	}

	if broken > 0 {
		os.Exit(2)
	}
}

// truncate shortens s to at most max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
