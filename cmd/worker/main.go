package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gympass/internal/checkin"
	"gympass/internal/config"
	"gympass/internal/queue"
	"gympass/internal/store"
)

// Worker consumes admitted check-in events and verifies the dual-write
// invariant: every attendance day must have exactly one ledger entry. A
// missing ledger row is repaired in place; anything else is logged for a
// human.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		q = queue.NewRedisQueue(redisClient.Client, "gympass:checkins")
	}

	repo := checkin.NewRepository(db.Client)
	metrics := checkin.NewMetrics(prometheus.DefaultRegisterer)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for check-in events...")
	for msg := range messages {
		if msg.Type != checkin.EventType {
			continue
		}

		var evt checkin.Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("malformed event dropped: %v", err)
			continue
		}
		day, err := time.Parse(checkin.DayFormat, evt.Day)
		if err != nil {
			log.Printf("event for %s has bad day %q: %v", evt.MemberID, evt.Day, err)
			continue
		}

		repaired, err := repo.Reconcile(ctx, evt.MemberID, evt.MembershipID, day)
		if err != nil {
			metrics.RecordMismatch()
			log.Printf("reconcile %s %s failed: %v", evt.MemberID, evt.Day, err)
			continue
		}
		if repaired {
			metrics.RecordRepair()
			log.Printf("repaired missing ledger entry for %s on %s", evt.MemberID, evt.Day)
		}
	}
}
