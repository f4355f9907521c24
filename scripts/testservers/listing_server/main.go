// Command listing_server serves a paginated product listing with a global
// rate limit, for trying checkfire locally.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	listingPath = "/api/v1/products"
	maxPageSize = 1000
)

type product struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type listingServer struct {
	limiter *rate.Limiter
	items   int
	token   string
	latency time.Duration
}

func main() {
	port := flag.Int("port", 8080, "Listening port")
	rps := flag.Float64("rate", 50, "Requests per second served before answering 429 (0 disables)")
	burst := flag.Int("burst", 10, "Rate limiter burst size")
	items := flag.Int("items", 1000, "Number of products in the catalogue")
	token := flag.String("token", "", "Require this bearer token when set")
	latency := flag.Duration("latency", 0, "Maximum random latency added to each response")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	mux := newMux(newListingServer(*rps, *burst, *items, *token, *latency))

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("listing server on %s (rate=%g/s burst=%d items=%d)", addr, *rps, *burst, *items)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func newMux(srv *listingServer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(listingPath, srv)
	return mux
}

func newListingServer(rps float64, burst, items int, token string, latency time.Duration) *listingServer {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	if items < 0 {
		items = 0
	}
	return &listingServer{
		limiter: rate.NewLimiter(limit, burst),
		items:   items,
		token:   token,
		latency: latency,
	}
}

func (s *listingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
		respondJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		respondJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limit exceeded"})
		return
	}

	page, err := queryInt(r, "page", 0)
	if err != nil || page < 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid page"})
		return
	}
	size, err := queryInt(r, "size", 20)
	if err != nil || size < 1 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid size"})
		return
	}

	if s.latency > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(s.latency))))
	}

	if size > maxPageSize {
		size = maxPageSize
	}
	content := make([]product, 0)
	if page < (s.items+size-1)/size {
		start := page * size
		end := min(start+size, s.items)
		content = make([]product, 0, end-start)
		for id := start; id < end; id++ {
			content = append(content, product{ID: id + 1, Name: fmt.Sprintf("Product %d", id+1), Price: float64(id%100) + 0.99})
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"content":       content,
		"page":          page,
		"size":          size,
		"totalElements": s.items,
	})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
