package mhub

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

// Simulator is an in-process stand-in for an MHUB web server. It serves the same endpoints
// the Client uses and backs --test mode as well as the test suites.
type Simulator struct {
	mutex sync.Mutex

	name    string
	inputs  []Port
	outputs []Port
	zones   []Zone // nil means the firmware has no zone API
	power   bool
	routing map[ID]ID

	failing     bool
	ignorePower bool
	requests    []string

	router *mux.Router
}

// NewSimulator creates a four-input, two-output switcher with zone support
func NewSimulator() *Simulator {
	show := true
	hide := false
	s := &Simulator{
		name: "MHUB Simulator",
		inputs: []Port{
			{Labels: []Label{{ID: "1", Label: "Apple TV", Show: &show}}},
			{Labels: []Label{{ID: "2", Label: "Sky Q", Show: &show}}},
			{Labels: []Label{{ID: "3", Label: "PlayStation", Show: &show}}},
			{Labels: []Label{{ID: "4", Label: "Spare", Show: &hide}}},
		},
		outputs: []Port{
			{Type: "hdmi", Labels: []Label{{ID: "A", Label: "Lounge TV"}}},
			{Type: "hdbaset", Labels: []Label{{ID: "B", Label: "Kitchen TV"}}},
		},
		zones: []Zone{
			{ZoneID: "z1", ZoneLabel: "Lounge", Outputs: []ZoneOutput{{OutputID: "A", ArcInput: "1"}}},
			{ZoneID: "z2", ZoneLabel: "Kitchen", AutoSwitchMode: true, Outputs: []ZoneOutput{{OutputID: "B"}}},
		},
		routing: map[ID]ID{},
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/data/100/", s.handleSystemInfo).Methods(http.MethodGet)
	router.HandleFunc("/api/data/102", s.handleZones).Methods(http.MethodGet)
	router.HandleFunc("/api/data/0/", s.handleState).Methods(http.MethodGet)
	router.HandleFunc("/api/power/{state:[01]}/", s.handlePower).Methods(http.MethodPost)
	router.HandleFunc("/api/control/switch/{output}/{input}/", s.handleSwitch).Methods(http.MethodGet)
	router.Use(s.recordRequests)
	s.router = router

	return s
}

// ServeHTTP implements http.Handler
func (s *Simulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on a loopback port and serves the simulator until stop is called.
// It returns the address to hand to NewClient.
func (s *Simulator) Serve() (address string, stop func() error, err error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen for simulator: %w", err)
	}

	server := &http.Server{Handler: s}
	go server.Serve(listener)

	return listener.Addr().String(), server.Close, nil
}

// SetName sets the reported mhub_name
func (s *Simulator) SetName(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.name = name
}

// SetInputs replaces the reported input_video block
func (s *Simulator) SetInputs(inputs []Port) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.inputs = inputs
}

// SetOutputs replaces the reported output_video block
func (s *Simulator) SetOutputs(outputs []Port) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.outputs = outputs
}

// SetZones replaces the zone list. nil disables the zone endpoint.
func (s *Simulator) SetZones(zones []Zone) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.zones = zones
}

// SetPower sets the reported power flag
func (s *Simulator) SetPower(on bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.power = on
}

// Power returns the current power flag
func (s *Simulator) Power() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.power
}

// SetFailing makes every endpoint answer 500
func (s *Simulator) SetFailing(failing bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failing = failing
}

// SetIgnorePower makes power commands succeed without changing the power flag,
// like a switcher that has not caught up yet
func (s *Simulator) SetIgnorePower(ignore bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.ignorePower = ignore
}

// Routing returns the input currently routed to output
func (s *Simulator) Routing(output ID) (ID, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	input, ok := s.routing[ID(strings.ToLower(string(output)))]
	return input, ok
}

// Requests returns "METHOD path" for every request served so far
func (s *Simulator) Requests() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string(nil), s.requests...)
}

// ResetRequests clears the request log
func (s *Simulator) ResetRequests() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.requests = nil
}

func (s *Simulator) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		failing := s.failing
		s.mutex.Unlock()

		if failing {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Simulator) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	data := map[string]interface{}{
		"mhub": map[string]interface{}{"mhub_name": s.name},
		"io_data": map[string]interface{}{
			"input_video":  s.inputs,
			"output_video": s.outputs,
		},
	}
	s.mutex.Unlock()
	writeData(w, data)
}

func (s *Simulator) handleZones(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	zones := s.zones
	s.mutex.Unlock()

	if zones == nil {
		http.NotFound(w, r)
		return
	}
	writeData(w, zones)
}

func (s *Simulator) handleState(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	power := s.power
	s.mutex.Unlock()
	writeData(w, map[string]interface{}{"power": power})
}

func (s *Simulator) handlePower(w http.ResponseWriter, r *http.Request) {
	on := mux.Vars(r)["state"] == "1"

	s.mutex.Lock()
	if !s.ignorePower {
		s.power = on
	}
	s.mutex.Unlock()
	writeData(w, map[string]interface{}{"power": on})
}

func (s *Simulator) handleSwitch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	output := ID(vars["output"])
	input := ID(vars["input"])

	s.mutex.Lock()
	s.routing[output] = input
	s.mutex.Unlock()
	writeData(w, map[string]interface{}{"output": output, "input": input})
}

func writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"header": map[string]interface{}{"result": 0},
		"data":   data,
	})
}
