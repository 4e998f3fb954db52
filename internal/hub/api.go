// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"matrixhub/internal/device"
	"matrixhub/internal/registry"
)

const (
	nonceHeader     = "X-Nonce"
	requestIDHeader = "X-Request-ID"
	maxNonceLength  = 128
	maxBodyBytes    = 64 << 10
)

// APIResponse is the envelope every endpoint answers with
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Recorder receives entity snapshots after they change. The sqlite registry implements it.
type Recorder interface {
	Upsert(snapshot device.EntitySnapshot) error
}

// RegistryReader serves the /registry routes. A recorder that also implements it is used
// for reads.
type RegistryReader interface {
	Get(uniqueID string) (*registry.Record, error)
	List(deviceID string) ([]registry.Record, error)
}

// APIServer exposes devices and entities over local HTTP
type APIServer struct {
	manager  *DeviceManager
	recorder Recorder
	reader   RegistryReader
	tokens   *TokenService
	hubID    string
	logger   zerolog.Logger
	router   *mux.Router
	server   *http.Server
}

// NewAPIServer creates the API server. A nil token service leaves every route open and
// a nil recorder skips registry writes.
func NewAPIServer(manager *DeviceManager, hubID string, tokens *TokenService, recorder Recorder, log zerolog.Logger) *APIServer {
	api := &APIServer{
		manager:  manager,
		recorder: recorder,
		tokens:   tokens,
		hubID:    hubID,
		logger:   log.With().Str("component", "api").Logger(),
	}
	if reader, ok := recorder.(RegistryReader); ok {
		api.reader = reader
	}

	router := mux.NewRouter()
	router.Use(api.requestIDMiddleware)
	router.Use(api.loggingMiddleware)

	router.HandleFunc("/health", api.handleHealth).Methods(http.MethodGet)

	protected := router.NewRoute().Subrouter()
	if tokens != nil {
		protected.Use(tokens.RequireAuth)
	}
	protected.HandleFunc("/devices", api.handleDevices).Methods(http.MethodGet)
	protected.HandleFunc("/devices/{id}/refresh", api.handleDeviceRefresh).Methods(http.MethodPost)
	protected.HandleFunc("/entities", api.handleEntities).Methods(http.MethodGet)
	protected.HandleFunc("/entities/{unique_id}", api.handleEntity).Methods(http.MethodGet)
	protected.HandleFunc("/entities/{unique_id}/{action}", api.handleEntityAction).Methods(http.MethodPost)
	protected.HandleFunc("/registry", api.handleRegistryList).Methods(http.MethodGet)
	protected.HandleFunc("/registry/{unique_id}", api.handleRegistryGet).Methods(http.MethodGet)

	api.router = router
	return api
}

// Handler returns the routed handler, mainly for tests
func (api *APIServer) Handler() http.Handler {
	return api.router
}

// Start listens on address in the background
func (api *APIServer) Start(address string) error {
	api.server = &http.Server{
		Addr:         address,
		Handler:      api.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	api.logger.Info().
		Str("address", address).
		Bool("auth", api.tokens != nil).
		Msg("Starting API server")

	go func() {
		if err := api.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			api.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop shuts the server down
func (api *APIServer) Stop(ctx context.Context) error {
	if api.server == nil {
		return nil
	}
	api.logger.Info().Msg("Stopping API server")
	return api.server.Shutdown(ctx)
}

type requestIDKey struct{}

func (api *APIServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))
	})
}

func (api *APIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		api.logger.Debug().
			Str("request_id", requestID(r)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("API request")
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func (api *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.send(w, r, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"hub_id":       api.hubID,
		"device_count": api.manager.GetDeviceCount(),
		"nonce_cache":  api.manager.GetNonceStats(),
	})
}

func (api *APIServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	api.send(w, r, http.StatusOK, api.manager.GetAllDeviceInfo())
}

func (api *APIServer) handleDeviceRefresh(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	if _, err := api.manager.GetDevice(deviceID); err != nil {
		api.sendError(w, r, http.StatusNotFound, err.Error())
		return
	}

	action, err := device.NewDeviceAction(device.DeviceActionRefresh)
	if err != nil {
		api.sendError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	response, err := api.manager.ProcessDeviceActionWithNonce(r.Context(), deviceID, r.Header.Get(nonceHeader), action)
	if err != nil {
		api.sendError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if response.Success {
		api.record(r, api.deviceEntities(deviceID)...)
	}
	api.sendAction(w, r, response)
}

func (api *APIServer) handleEntities(w http.ResponseWriter, r *http.Request) {
	entities := api.manager.Entities()
	if entities == nil {
		entities = []device.EntitySnapshot{}
	}
	api.send(w, r, http.StatusOK, entities)
}

func (api *APIServer) handleEntity(w http.ResponseWriter, r *http.Request) {
	uniqueID := mux.Vars(r)["unique_id"]
	_, snapshot, ok := api.manager.FindEntity(uniqueID)
	if !ok {
		api.sendError(w, r, http.StatusNotFound, fmt.Sprintf("entity not found: %s", uniqueID))
		return
	}
	api.send(w, r, http.StatusOK, snapshot)
}

func (api *APIServer) handleEntityAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	uniqueID := vars["unique_id"]

	deviceID, _, ok := api.manager.FindEntity(uniqueID)
	if !ok {
		api.sendError(w, r, http.StatusNotFound, fmt.Sprintf("entity not found: %s", uniqueID))
		return
	}

	nonce := r.Header.Get(nonceHeader)
	if len(nonce) > maxNonceLength {
		api.sendError(w, r, http.StatusBadRequest, "nonce is too long")
		return
	}

	parameters, err := decodeParameters(r)
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	action, err := device.NewEntityAction(uniqueID, device.EntityAction(vars["action"]), parameters)
	if err != nil {
		api.sendError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	event := api.logger.Info().
		Str("request_id", requestID(r)).
		Str("unique_id", uniqueID).
		Str("action", vars["action"])
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		event = event.Str("subject", claims.Subject)
	}
	event.Msg("Entity action requested")

	response, err := api.manager.ProcessDeviceActionWithNonce(r.Context(), deviceID, nonce, action)
	if err != nil {
		api.sendError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if snapshot, ok := response.Data.(device.EntitySnapshot); ok {
		api.record(r, snapshot)
	}
	api.sendAction(w, r, response)
}

func (api *APIServer) handleRegistryList(w http.ResponseWriter, r *http.Request) {
	if api.reader == nil {
		api.sendError(w, r, http.StatusNotFound, "entity registry is disabled")
		return
	}

	records, err := api.reader.List(r.URL.Query().Get("device_id"))
	if err != nil {
		api.sendError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []registry.Record{}
	}
	api.send(w, r, http.StatusOK, records)
}

func (api *APIServer) handleRegistryGet(w http.ResponseWriter, r *http.Request) {
	if api.reader == nil {
		api.sendError(w, r, http.StatusNotFound, "entity registry is disabled")
		return
	}

	record, err := api.reader.Get(mux.Vars(r)["unique_id"])
	if errors.Is(err, registry.ErrNotFound) {
		api.sendError(w, r, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		api.sendError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	api.send(w, r, http.StatusOK, record)
}

// decodeParameters reads the optional JSON object body of an entity action
func decodeParameters(r *http.Request) (map[string]interface{}, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	var parameters map[string]interface{}
	if err := json.Unmarshal(body, &parameters); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return parameters, nil
}

func (api *APIServer) deviceEntities(deviceID string) []device.EntitySnapshot {
	dev, err := api.manager.GetDevice(deviceID)
	if err != nil {
		return nil
	}
	return dev.Entities()
}

func (api *APIServer) record(r *http.Request, snapshots ...device.EntitySnapshot) {
	if api.recorder == nil {
		return
	}
	for _, snapshot := range snapshots {
		if err := api.recorder.Upsert(snapshot); err != nil {
			api.logger.Warn().
				Err(err).
				Str("request_id", requestID(r)).
				Str("unique_id", snapshot.UniqueID).
				Msg("Failed to record entity")
		}
	}
}

func (api *APIServer) sendAction(w http.ResponseWriter, r *http.Request, response *device.ActionResponse) {
	status := http.StatusOK
	if !response.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, APIResponse{
		Success:   response.Success,
		Data:      response.Data,
		Error:     response.Error,
		RequestID: requestID(r),
	})
}

func (api *APIServer) send(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, status, APIResponse{Success: true, Data: data, RequestID: requestID(r)})
}

func (api *APIServer) sendError(w http.ResponseWriter, r *http.Request, status int, message string) {
	api.logger.Warn().
		Str("request_id", requestID(r)).
		Int("status", status).
		Str("message", message).
		Msg("API client error")
	writeJSON(w, status, APIResponse{Success: false, Error: message, RequestID: requestID(r)})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
