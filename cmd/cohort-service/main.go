package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/classify"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/config"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/database"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/logger"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/sampling"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/stratify"
)

type server struct {
	samples *sampling.Service
}

func main() {
	logger.Init()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Log.WithError(err).Fatal("Invalid configuration")
	}

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.ClosePostgres()

	cohortRepo := sampling.NewRepository(db)
	if err := cohortRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate cohort table")
	}

	strataRepo := stratify.NewRepository(db)
	cache := stratify.NewCache(database.GetRedis(), strataRepo, cfg.FeatureCacheTTL)
	svc := sampling.NewService(classify.NewRepository(db), strataRepo, cache, cohortRepo, cfg.SampleSeed)
	s := &server{samples: svc}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/api/v1/sample/random", s.handleRandom).Methods("POST")
	router.HandleFunc("/api/v1/sample/balanced", s.handleBalanced).Methods("POST")
	router.HandleFunc("/api/v1/sample/stratified", s.handleStratified).Methods("POST")
	router.HandleFunc("/api/v1/sample/{id}", s.handleGetCohort).Methods("GET")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Cohort Service started")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Cohort Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Cohort Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (s *server) handleRandom(w http.ResponseWriter, r *http.Request) {
	var req sampling.RandomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	cohort, err := s.samples.RandomSample(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, cohort)
}

func (s *server) handleBalanced(w http.ResponseWriter, r *http.Request) {
	var req sampling.BalancedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	cohort, err := s.samples.BalancedSample(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, cohort)
}

func (s *server) handleStratified(w http.ResponseWriter, r *http.Request) {
	var req sampling.StratifiedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	cohort, err := s.samples.StratifiedSample(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, cohort)
}

func (s *server) handleGetCohort(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid cohort id", http.StatusBadRequest)
		return
	}
	cohort, err := s.samples.GetCohort(r.Context(), id)
	if err != nil {
		if errors.Is(err, sampling.ErrCohortNotFound) {
			http.Error(w, "Cohort not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cohort)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Error("Failed to encode response")
	}
}
