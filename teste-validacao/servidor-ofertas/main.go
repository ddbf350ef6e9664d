package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// API de ofertas falsa para validar o gateway manualmente:
//
//	go run ./teste-validacao/servidor-ofertas
//	UPSTREAM_URL=http://localhost:8081 go run ./cmd/gateway
//	curl -i 'http://localhost:8080/api/search?q=tv'
//
// /slow demora 15s (estoura o timeout do gateway) e /deals/quebrada responde 500.
type deal struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Price    float64  `json:"price"`
	Platform string   `json:"platform"`
	Tags     []string `json:"tags,omitempty"`
}

var catalog = []deal{
	{ID: "1", Title: "TV 55 polegadas", Price: 2399.90, Platform: "loja-a", Tags: []string{"tv"}},
	{ID: "2", Title: "Smartphone 128GB", Price: 1299.00, Platform: "loja-b", Tags: []string{"phone"}},
	{ID: "3", Title: "Notebook 16GB", Price: 3899.00, Platform: "loja-a", Tags: []string{"laptop"}},
	{ID: "4", Title: "Fone bluetooth", Price: 199.90, Platform: "loja-c", Tags: []string{"audio"}},
}

var hits atomic.Int64

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		q := strings.ToLower(r.URL.Query().Get("q"))
		platforms := r.URL.Query()["platform"]
		maxPrice, _ := strconv.ParseFloat(r.URL.Query().Get("max_price"), 64)

		var out []deal
		for _, d := range catalog {
			if q != "" && !strings.Contains(strings.ToLower(d.Title), q) && !hasTag(d, q) {
				continue
			}
			if len(platforms) > 0 && !slices.Contains(platforms, d.Platform) {
				continue
			}
			if maxPrice > 0 && d.Price > maxPrice {
				continue
			}
			out = append(out, d)
		}
		fmt.Printf("Log: busca #%d q=%q -> %d ofertas\n", n, q, len(out))
		writeJSON(w, http.StatusOK, map[string]any{"query": q, "deals": out})
	})
	mux.HandleFunc("GET /deals/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		id := r.PathValue("id")
		if id == "quebrada" {
			http.Error(w, "erro interno", http.StatusInternalServerError)
			return
		}
		for _, d := range catalog {
			if d.ID == id {
				writeJSON(w, http.StatusOK, d)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "oferta não encontrada"})
	})
	mux.HandleFunc("GET /deals/{id}/link", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://ofertas.example/r/" + r.PathValue("id")})
	})
	mux.HandleFunc("GET /wishlist", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"user": r.URL.Query().Get("user"), "deals": catalog[:2]})
	})
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(15 * time.Second):
			writeJSON(w, http.StatusOK, map[string]string{"status": "atrasado"})
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("GET /hits", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int64{"hits": hits.Load()})
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	fmt.Printf("API de ofertas falsa rodando em http://localhost%s\n", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func hasTag(d deal, tag string) bool { return slices.Contains(d.Tags, tag) }
