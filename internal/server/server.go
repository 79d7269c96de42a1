package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/bookmatch/bookmatch-api/internal/config"
	"github.com/bookmatch/bookmatch-api/internal/domain/models"
	"github.com/bookmatch/bookmatch-api/internal/domain/repository"
	"github.com/bookmatch/bookmatch-api/internal/serving"
)

// Server holds the dependencies for the HTTP API server
type Server struct {
	datasets *serving.Manager
	cfg      *config.Config
}

// NewServer initializes a new API server with the required dependencies
func NewServer(datasets *serving.Manager, cfg *config.Config) *Server {
	return &Server{
		datasets: datasets,
		cfg:      cfg,
	}
}

// RegisterRoutes registers all API endpoints with a new ServeMux
func (s *Server) RegisterRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Go 1.22+ supports HTTP method routing directly in ServeMux
	mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/books/{book_id}/recommendations", s.handleRecommendations)
	mux.HandleFunc("GET /api/v1/healthz", s.handleHealthz)
	mux.HandleFunc("POST /api/v1/admin/reload", s.handleReload)

	return mux
}

type SearchResponse struct {
	Query   string                   `json:"query"`
	Results []models.SearchCandidate `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	limit := s.cfg.SearchMaxResults
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Query parameter 'limit' must be a positive integer", http.StatusBadRequest)
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	ds := s.datasets.Current()
	results := ds.Titles.Search(query, limit)
	if results == nil {
		results = []models.SearchCandidate{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(SearchResponse{Query: query, Results: results})
}

type RecommendationsResponse struct {
	BookID          int64                        `json:"book_id"`
	DatasetVersion  string                       `json:"dataset_version"`
	Reason          string                       `json:"reason,omitempty"`
	Recommendations []models.FusedRecommendation `json:"recommendations"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(r.PathValue("book_id"), 10, 64)
	if err != nil {
		http.Error(w, "Path parameter 'book_id' must be an integer", http.StatusBadRequest)
		return
	}

	n := s.cfg.DefaultResultCount
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil || parsed <= 0 {
			http.Error(w, "Query parameter 'n' must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	if n > s.cfg.MaxResultCount {
		n = s.cfg.MaxResultCount
	}

	// One dataset reference for the whole request so a concurrent reload
	// cannot mix catalog versions mid-response.
	ds := s.datasets.Current()
	resp := RecommendationsResponse{
		BookID:          bookID,
		DatasetVersion:  ds.Version,
		Recommendations: []models.FusedRecommendation{},
	}

	recs, err := ds.Engine.Recommend(r.Context(), bookID, n)
	switch {
	case errors.Is(err, repository.ErrUnknownBook):
		http.Error(w, "Book not found", http.StatusNotFound)
		return
	case errors.Is(err, repository.ErrNoSignalAvailable):
		resp.Reason = "no_signal"
	case err != nil:
		log.Printf("[Server] Recommendation failed for book %d: %v", bookID, err)
		http.Error(w, "Recommendation engine unavailable", http.StatusServiceUnavailable)
		return
	default:
		resp.Recommendations = recs
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ds := s.datasets.Current()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"dataset_version": ds.Version,
		"loaded_at":       ds.LoadedAt,
		"books":           ds.Catalog.Size(),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ds, err := s.datasets.Reload(r.Context())
	if err != nil {
		log.Printf("[Server] Dataset reload failed: %v", err)
		http.Error(w, "Reload failed, previous dataset still active", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"dataset_version": ds.Version,
		"books":           ds.Catalog.Size(),
	})
}
