// Package main provides a load testing tool for stream chat and push delivery.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	MessagesQueued       int64
	EventsReceived       int64
	EventsDropped        int64
	Errors               int64
}

var (
	metrics    Metrics
	httpClient = &http.Client{Timeout: 5 * time.Second}
)

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	owner := flag.String("owner", "loadtest", "Owner ID for the test stream")
	token := flag.String("token", "", "Bearer token when AUTH_REQUIRED is on")
	moderated := flag.Bool("moderated", false, "Start the stream with moderation enabled")
	clients := flag.Int("clients", 50, "Number of concurrent viewers")
	interval := flag.Duration("interval", 5*time.Second, "Delay between messages per viewer")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	flag.Parse()

	log.Printf("🚀 Starting Stream Chat Load Test")
	log.Printf("Target: %s", *host)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	streamID, err := startStream(*host, *token, *owner, *moderated)
	if err != nil {
		log.Fatalf("❌ Start stream failed: %v", err)
	}
	log.Printf("✅ Stream %d is live", streamID)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, *token, streamID, i, *interval, stopChan, &wg)
		time.Sleep(20 * time.Millisecond) // stagger connections
	}

	select {
	case <-time.After(*duration):
		log.Println("⏱️  Test duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	if err := endStream(*host, *token, streamID); err != nil {
		log.Printf("⚠️  End stream failed: %v", err)
	}

	printMetrics()
}

func postJSON(endpoint, token string, payload any) (*http.Response, error) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return httpClient.Do(req)
}

func startStream(host, token, owner string, moderated bool) (uint, error) {
	resp, err := postJSON(fmt.Sprintf("http://%s/api/streams", host), token, map[string]any{
		"ownerId":           owner,
		"title":             "Load test",
		"moderationEnabled": moderated,
	})
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("start failed with status %d", resp.StatusCode)
	}

	var result struct {
		StreamID uint `json:"streamId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	return result.StreamID, nil
}

func endStream(host, token string, streamID uint) error {
	resp, err := postJSON(fmt.Sprintf("http://%s/api/streams/%d/end", host, streamID), token, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("end failed with status %d", resp.StatusCode)
	}
	return nil
}

func sendMessage(host, token string, streamID uint, id int) error {
	resp, err := postJSON(fmt.Sprintf("http://%s/api/streams/%d/messages", host, streamID), token, map[string]string{
		"author": fmt.Sprintf("viewer-%d", id),
		"text":   fmt.Sprintf("Load test message from client %d", id),
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusAccepted:
		atomic.AddInt64(&metrics.MessagesQueued, 1)
	default:
		return fmt.Errorf("send failed with status %d", resp.StatusCode)
	}
	return nil
}

func runClient(host, token string, streamID uint, id int, interval time.Duration, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	u := url.URL{Scheme: "ws", Host: host, Path: fmt.Sprintf("/api/ws/streams/%d", streamID)}
	if token != "" {
		u.RawQuery = "token=" + url.QueryEscape(token)
	}

	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	go func() {
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)

			var ev struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(raw, &ev) == nil && ev.Type == "events_dropped" {
				atomic.AddInt64(&metrics.EventsDropped, 1)
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := sendMessage(host, token, streamID, id); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func printMetrics() {
	log.Println("\n📊 Test Results")
	log.Println("===============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Messages Sent: %d (queued: %d)", atomic.LoadInt64(&metrics.MessagesSent), atomic.LoadInt64(&metrics.MessagesQueued))
	log.Printf("Events Received: %d (drop notices: %d)", atomic.LoadInt64(&metrics.EventsReceived), atomic.LoadInt64(&metrics.EventsDropped))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
