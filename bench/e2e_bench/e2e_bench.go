package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// UserResp represents the server's response when a user is created.
type UserResp struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// TuitResp represents a tuit entity returned by the API.
type TuitResp struct {
	ID string `json:"id"`
}

func main() {
	// CLI flags
	var serverAddr string
	var U, F, D, concurrency int
	var pollTimeout int

	flag.StringVar(&serverAddr, "server", "https://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 50, "number of users to create")
	flag.IntVar(&F, "follows", 10, "follows and bookmarks per doomed user")
	flag.IntVar(&D, "teardowns", 10, "number of accounts to tear down")
	flag.IntVar(&concurrency, "c", 20, "concurrency for teardown requests")
	flag.IntVar(&pollTimeout, "timeout", 30, "seconds to wait for cascade completion")
	flag.Parse()

	if D > U {
		D = U
	}

	ctx := context.Background()

	// --- TLS setup for secure communication ---
	cert, err := tls.LoadX509KeyPair("../../certs/cert.pem", "../../certs/key.pem")
	if err != nil {
		panic(fmt.Sprintf("failed to load cert/key: %v", err))
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
			},
		},
		Timeout: 10 * time.Second,
	}

	// --- 1) Create users ---
	fmt.Printf("Creating %d users...\n", U)
	users := make([]UserResp, 0, U)
	for i := 0; i < U; i++ {
		// Generate unique username
		payload := map[string]string{"username": fmt.Sprintf("user-%d-%d", i, time.Now().UnixNano())}
		b, _ := json.Marshal(payload)

		// Send POST request to create user
		resp, err := client.Post(serverAddr+"/users", "application/json", bytes.NewReader(b))
		if err != nil {
			fmt.Printf("create user error: %v\n", err)
			os.Exit(1)
		}

		var ur UserResp
		if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
			resp.Body.Close()
			fmt.Printf("decode user resp error: %v\n", err)
			os.Exit(1)
		}
		resp.Body.Close()
		users = append(users, ur)
	}
	fmt.Println("Users created successfully.")

	// The first D users are the ones we will tear down.
	doomed := users[:D]
	rest := users[D:]
	if len(rest) == 0 {
		rest = users
	}

	// --- 2) Seed one tuit per surviving user as bookmark targets ---
	fmt.Println("Seeding tuits...")
	tuits := make([]TuitResp, 0, len(rest))
	for _, u := range rest {
		b, _ := json.Marshal(map[string]string{"body": fmt.Sprintf("bench tuit %d", rand.Int())})
		req, _ := http.NewRequestWithContext(ctx, "POST", serverAddr+"/tuits", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+u.Token)

		resp, err := client.Do(req)
		if err != nil {
			fmt.Printf("create tuit error: %v\n", err)
			os.Exit(1)
		}
		var tr TuitResp
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			resp.Body.Close()
			fmt.Printf("decode tuit resp error: %v\n", err)
			os.Exit(1)
		}
		resp.Body.Close()
		tuits = append(tuits, tr)
	}

	// --- 3) Build the graph around each doomed user ---
	// Follows in both directions, bookmarks, and messages both ways, so
	// every one of the five cascades has rows to remove.
	fmt.Printf("Seeding relations (~%d per doomed user per kind)...\n", F)
	for _, du := range doomed {
		for j := 0; j < F; j++ {
			other := rest[rand.Intn(len(rest))]

			post(ctx, client, serverAddr+"/follows", du.Token,
				map[string]string{"followee_id": other.UserID})
			post(ctx, client, serverAddr+"/follows", other.Token,
				map[string]string{"followee_id": du.UserID})
			post(ctx, client, serverAddr+"/bookmarks", du.Token,
				map[string]string{"tuit_id": tuits[rand.Intn(len(tuits))].ID})
			post(ctx, client, serverAddr+"/messages", du.Token,
				map[string]string{"recipient_id": other.UserID, "body": "so long"})
			post(ctx, client, serverAddr+"/messages", other.Token,
				map[string]string{"recipient_id": du.UserID, "body": "farewell"})
		}
	}
	fmt.Println("Relations established.")

	// --- 4) Request teardowns concurrently and poll for completion ---
	fmt.Printf("Tearing down %d accounts with concurrency %d...\n", D, concurrency)
	var latencies []float64
	var latMu sync.Mutex
	var failCount int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // concurrency limiter

	for _, du := range doomed {
		wg.Add(1)
		sem <- struct{}{}
		go func(du UserResp) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			req, _ := http.NewRequestWithContext(ctx, "DELETE", serverAddr+"/account", nil)
			req.Header.Set("Authorization", "Bearer "+du.Token)
			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("teardown request error: %v\n", err)
				latMu.Lock()
				failCount++
				latMu.Unlock()
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusAccepted {
				fmt.Printf("teardown request status: %d\n", resp.StatusCode)
				latMu.Lock()
				failCount++
				latMu.Unlock()
				return
			}

			// Poll the doomed user's own listings until every one is
			// empty or the timeout elapses. The token outlives the data.
			deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)
			paths := []string{"/following", "/followers", "/bookmarks", "/messages/sent", "/messages/received"}
			for time.Now().Before(deadline) {
				if allEmpty(ctx, client, serverAddr, du.Token, paths) {
					lat := time.Since(start).Seconds() * 1000
					latMu.Lock()
					latencies = append(latencies, lat)
					latMu.Unlock()
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			latMu.Lock()
			failCount++
			latMu.Unlock()
		}(du)
	}

	wg.Wait()

	// --- 5) Compute latency statistics and export to CSV ---
	if len(latencies) == 0 {
		fmt.Println("No completed teardowns recorded.")
	} else {
		trimPercent := 1.0
		meanVal := trimmedMean(latencies, trimPercent)
		p50 := trimmedPercentile(latencies, 50, trimPercent)
		p90 := trimmedPercentile(latencies, 90, trimPercent)
		p99 := trimmedPercentile(latencies, 99, trimPercent)
		fmt.Printf("Teardown stats (ms): count=%d mean=%.2f p50=%.2f p90=%.2f p99=%.2f fails=%d\n",
			len(latencies), meanVal, p50, p90, p99, failCount)

		// Export latencies to CSV
		f, _ := os.Create("e2e_latencies.csv")
		w := csv.NewWriter(f)
		w.Write([]string{"latency_ms"})
		for _, v := range latencies {
			w.Write([]string{fmt.Sprintf("%.3f", v)})
		}
		w.Flush()
		f.Close()
		fmt.Println("Saved e2e_latencies.csv")
	}
}

// post sends an authorized JSON POST and discards the response.
func post(ctx context.Context, client *http.Client, url, token string, payload map[string]string) {
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("seed error on %s: %v\n", url, err)
		os.Exit(1)
	}
	resp.Body.Close()
}

// allEmpty reports whether every listed path returns a JSON array of length 0.
func allEmpty(ctx context.Context, client *http.Client, serverAddr, token string, paths []string) bool {
	for _, p := range paths {
		req, _ := http.NewRequestWithContext(ctx, "GET", serverAddr+p, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := client.Do(req)
		if err != nil {
			return false
		}

		var items []json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
			resp.Body.Close()
			return false
		}
		resp.Body.Close()

		if len(items) > 0 {
			return false
		}
	}
	return true
}

// trimmedMean calculates the mean of a dataset excluding extreme values.
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	data = data[trim : len(data)-trim]
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// trimmedPercentile returns a percentile value after trimming extremes.
func trimmedPercentile(data []float64, p float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	data = data[trim : len(data)-trim]
	return percentile(data, p)
}

// percentile calculates the requested percentile using linear interpolation.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	d0 := data[f] * (float64(c) - k)
	d1 := data[c] * (k - float64(f))
	return d0 + d1
}
