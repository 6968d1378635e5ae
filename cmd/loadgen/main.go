package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Fires a burst of concurrent create+process order requests against a
// running kiosk server and reports the split of outcomes. Useful for
// checking that same-beverage orders serialize instead of racing stock.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "kiosk server base URL")
	beverageID := flag.String("beverage", "cola", "beverage id to order")
	volume := flag.Float64("volume", 0.3, "volume per order in liters")
	totalRequests := flag.Int("n", 20, "number of concurrent orders")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Minute}

	var completed, rejected, failed atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			orderID, err := createOrder(client, *baseURL, *beverageID, *volume)
			if err != nil {
				rejected.Add(1)
				return
			}
			if err := processOrder(client, *baseURL, orderID); err != nil {
				failed.Add(1)
				return
			}
			completed.Add(1)
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== LOAD TEST RESULTS ==========")
	fmt.Printf("Total Requests:  %d\n", *totalRequests)
	fmt.Printf("Completed:       %d\n", completed.Load())
	fmt.Printf("Rejected:        %d\n", rejected.Load())
	fmt.Printf("Failed:          %d\n", failed.Load())
	fmt.Printf("Duration:        %v\n", elapsed)
	fmt.Println("=======================================")

	status, err := fetchJSON(client, *baseURL+"/api/admin/inventory/report")
	if err != nil {
		log.Fatalf("report fetch failed: %v", err)
	}
	fmt.Printf("Inventory report: %s\n", status)
}

func createOrder(client *http.Client, baseURL, beverageID string, volume float64) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"items":    []map[string]any{{"beverageId": beverageID, "volume": volume}},
		"language": "en",
	})

	resp, err := client.Post(baseURL+"/api/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create returned %d", resp.StatusCode)
	}

	var out struct {
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.OrderID, nil
}

func processOrder(client *http.Client, baseURL, orderID string) error {
	resp, err := client.Post(baseURL+"/api/orders/"+orderID+"/process", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("process returned %d", resp.StatusCode)
	}
	return nil
}

func fetchJSON(client *http.Client, url string) (string, error) {
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", err
	}
	return buf.String(), nil
}
