package httpserver

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/fdg312/nutri-plans/internal/apperr"
	"github.com/fdg312/nutri-plans/internal/auth"
	"github.com/fdg312/nutri-plans/internal/catalog"
	"github.com/fdg312/nutri-plans/internal/config"
	"github.com/fdg312/nutri-plans/internal/meals"
	"github.com/fdg312/nutri-plans/internal/planexport"
	"github.com/fdg312/nutri-plans/internal/plans"
	"github.com/fdg312/nutri-plans/internal/seed"
	"github.com/fdg312/nutri-plans/internal/storage"
	"github.com/fdg312/nutri-plans/internal/storage/memory"
	"github.com/fdg312/nutri-plans/internal/storage/postgres"
)

// Server представляет HTTP сервер
type Server struct {
	config         *config.Config
	mux            *http.ServeMux
	storage        storage.Storage
	authMiddleware *auth.Middleware
}

// New создаёт новый HTTP сервер
func New(cfg *config.Config) *Server {
	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
	}

	s.initStorage()
	s.seedCatalog()
	s.routes()
	return s
}

// NewWithStorage builds a server around an existing store.
func NewWithStorage(cfg *config.Config, st storage.Storage) *Server {
	s := &Server{
		config:  cfg,
		mux:     http.NewServeMux(),
		storage: st,
	}
	s.routes()
	return s
}

// initStorage инициализирует storage (Memory или Postgres)
func (s *Server) initStorage() {
	if s.config.DatabaseURL == "" {
		log.Println("storage: using in-memory backend")
		s.storage = memory.New()
		return
	}

	log.Println("storage: connecting to PostgreSQL...")
	pgStorage, err := postgres.New(context.Background(), s.config.DatabaseURL)
	if err != nil {
		log.Printf("storage: PostgreSQL connection failed: %v", err)
		log.Println("storage: falling back to in-memory backend")
		s.storage = memory.New()
		return
	}
	log.Println("storage: PostgreSQL connected")
	s.storage = pgStorage
}

// seedCatalog applies CATALOG_SEED_FILE when set. A bad file is logged, not fatal.
func (s *Server) seedCatalog() {
	if s.config.CatalogSeedFile == "" {
		return
	}
	f, err := seed.Load(s.config.CatalogSeedFile)
	if err != nil {
		log.Printf("seed: skipped: %v", err)
		return
	}
	res, err := seed.Apply(context.Background(), s.storage.GetRecipesStorage(), s.storage.GetPatientsStorage(), f)
	if err != nil {
		log.Printf("seed: failed: %v", err)
		return
	}
	log.Printf("seed: applied file=%s recipes=%d patients=%d", s.config.CatalogSeedFile, res.Recipes, res.Patients)
}

// routes регистрирует маршруты
func (s *Server) routes() {
	// Health check (no auth required)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	authService := auth.NewService(s.config)
	s.authMiddleware = auth.NewMiddleware(authService)
	if s.config.DevAuthEnabled() {
		// POST /v1/auth/dev - local dev token
		s.mux.HandleFunc("POST /v1/auth/dev", auth.NewHandlers(authService).HandleDevAuth)
	}

	catalogService := catalog.NewService(s.storage.GetRecipesStorage())
	planService := plans.NewService(
		s.storage.GetPlansStorage(),
		s.storage.GetPatientsStorage(),
		catalogService,
		plans.Limits{MaxDays: s.config.PlansMaxDays, MaxMealsPerDay: s.config.PlansMaxMealsPerDay},
	)
	mealService := meals.NewService(s.storage.GetPlansStorage(), catalogService)

	// Plans API
	planHandler := plans.NewHandler(planService)
	s.mux.HandleFunc("POST /v1/plans", planHandler.HandleCreate)
	s.mux.HandleFunc("GET /v1/plans", planHandler.HandleList)
	s.mux.HandleFunc("GET /v1/plans/patient-info", planHandler.HandlePatientInfo)
	s.mux.HandleFunc("GET /v1/plans/{id}", planHandler.HandleGet)
	s.mux.HandleFunc("PATCH /v1/plans/{id}", planHandler.HandleUpdate)
	s.mux.HandleFunc("DELETE /v1/plans/{id}", planHandler.HandleDelete)

	// GET /v1/plans/{id}/export?format=pdf|csv
	s.mux.HandleFunc("GET /v1/plans/{id}/export", planexport.NewHandler(planService).HandleExport)

	// Meals API
	mealHandler := meals.NewHandler(mealService)
	s.mux.HandleFunc("POST /v1/plans/meals/{mealId}/select-recipe", mealHandler.HandleSelectRecipe)
	s.mux.HandleFunc("POST /v1/plans/meals/{mealId}/custom-meal", mealHandler.HandleCustomMeal)
	s.mux.HandleFunc("POST /v1/plans/meals/{mealId}/complete", mealHandler.HandleComplete)
	s.mux.HandleFunc("POST /v1/plans/meals/{mealId}/assign-recipe", mealHandler.HandleAssignRecipe)
	s.mux.HandleFunc("DELETE /v1/plans/meals/{mealId}/recipe", mealHandler.HandleRemoveRecipe)
	s.mux.HandleFunc("GET /v1/plans/meals/{mealId}/available-recipes", mealHandler.HandleAvailableRecipes)

	// Catalog API
	s.mux.HandleFunc("GET /v1/recipes/available", catalog.NewHandler(catalogService).HandleAvailable)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperr.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Handler builds the middleware chain (outermost first): CORS → Rate Limit → Auth → Router
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = s.authMiddleware.RequireAuth(handler)
	handler = RateLimitMiddleware(s.config, handler)
	handler = CORSMiddleware(s.config, handler)
	return handler
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	log.Printf("Server listening on http://localhost%s", addr)
	log.Printf("Health check: http://localhost%s/healthz", addr)
	log.Printf("Plans API: http://localhost%s/v1/plans", addr)

	return http.ListenAndServe(addr, s.Handler())
}

// Close закрывает соединения
func (s *Server) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
