package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom/internal/attendance"
	"classroom/internal/config"
	"classroom/internal/queue"
	"classroom/internal/store"
)

// Worker consumes queued attendance record IDs and finalizes them in
// Postgres. Keeping the write path async means a slow database never blocks
// the check-in endpoint.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classroom:attendance")
	}

	repo := attendance.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "attendance" {
			continue
		}

		id := string(msg.Body)

		rec, err := repo.GetRecord(ctx, id)
		if err != nil {
			log.Printf("fetch record %s failed: %v", id, err)
			continue
		}
		if rec.State == attendance.StateRecorded {
			continue
		}

		if err := repo.MarkRecorded(ctx, id); err != nil {
			log.Printf("finalize record %s failed: %v", id, err)
			continue
		}
		log.Printf("record %s finalized (%s, %s by %s)", id, rec.Status, rec.StudentID, rec.MarkedBy)

		time.Sleep(10 * time.Millisecond)
	}

	log.Println("worker stopped")
}
