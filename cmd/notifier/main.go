package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"clubhours/internal/config"
	"clubhours/internal/notify"
)

// Notifier drains the notification queue and posts each message to the
// admin webhook. Delivery is best-effort: failures are logged and the
// message dropped, never retried back onto the submitter.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}
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

	var src notify.Source
	if cfg.QueueBackend == "memory" {
		log.Fatal("notifier requires QUEUE_BACKEND=redis; the in-memory queue lives inside the api process")
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	src = notify.NewRedisQueue(redisClient, "")

	if cfg.NotifyWebhookURL == "" {
		log.Println("warning: NOTIFY_WEBHOOK_URL not set, notifications will be logged only")
	}

	messages, err := src.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	log.Println("notifier started, waiting for messages...")
	for n := range messages {
		log.Printf("notification: %s", n.Title)
		if cfg.NotifyWebhookURL == "" {
			continue
		}
		if err := deliver(ctx, client, cfg.NotifyWebhookURL, n); err != nil {
			log.Printf("delivery failed (dropped): %v", err)
		}
	}

	log.Println("notifier stopped")
}

func deliver(ctx context.Context, client *http.Client, url string, n notify.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
