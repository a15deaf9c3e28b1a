// Package observer is a non-core HTTP/WebSocket surface: it watches
// instances and streams or persists what they do, but never reaches
// into engine/scheduler internals to do so.
package observer

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"flowforge-engine/internal/engine"
	"flowforge-engine/internal/registry"
	"flowforge-engine/internal/scheduler"
	"flowforge-engine/pkg/logger"
)

// Server exposes a read/command surface over a ProcessingUnit,
// building instances through a Registry and wiring every new instance
// to the Hub and (if configured) a snapshot listener.
type Server struct {
	unit      *scheduler.ProcessingUnit
	registry  *registry.Registry
	hub       *Hub
	snapshots *SnapshotListener
	log       logger.Logger
}

func NewServer(unit *scheduler.ProcessingUnit, reg *registry.Registry, hub *Hub, snapshots *SnapshotListener, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop{}
	}
	return &Server{unit: unit, registry: reg, hub: hub, snapshots: snapshots, log: log}
}

// Router builds the HTTP handler: instance creation/listing, command
// submission, and a WebSocket event stream.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/instances", s.listInstances).Methods(http.MethodGet)
	api.HandleFunc("/instances", s.createInstance).Methods(http.MethodPost)
	api.HandleFunc("/instances/{id}/commands", s.putCommand).Methods(http.MethodPost)
	api.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.URL.Query().Get("userId"))
	if err != nil {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}

	items := s.unit.GetInstanceListItems(userID)
	writeJSON(w, http.StatusOK, items)
}

type blockRequest struct {
	InternalBlockID string   `json:"internalBlockId"`
	BlockTypeID     string   `json:"blockTypeId"`
	Args            []string `json:"args"`
}

type lineRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type parameterRequest struct {
	InternalBlockID string `json:"internalBlockId"`
	Value           string `json:"value"`
}

type createInstanceRequest struct {
	InstanceID     int                `json:"instanceId"`
	TemplateID     int                `json:"templateId"`
	InstanceUserID int                `json:"instanceUserId"`
	InstanceName   string             `json:"instanceName"`
	Blocks         []blockRequest     `json:"blocks"`
	Lines          []lineRequest      `json:"lines"`
	Parameters     []parameterRequest `json:"parameters"`
}

// createInstance builds blocks through the registry, wires them into
// an Instance, registers it with the ProcessingUnit, and attaches the
// server's Hub (and snapshot listener, if configured) so the new
// instance's ticks are observable immediately.
func (s *Server) createInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid instance body", http.StatusBadRequest)
		return
	}

	blocks := make([]engine.Block, 0, len(req.Blocks))
	for _, br := range req.Blocks {
		b, err := s.registry.CreateBlock(br.InternalBlockID, br.BlockTypeID, br.Args...)
		if err != nil {
			http.Error(w, "building block "+br.InternalBlockID+": "+err.Error(), http.StatusBadRequest)
			return
		}
		blocks = append(blocks, b)
	}

	lines := make([]engine.LineSpec, 0, len(req.Lines))
	for _, lr := range req.Lines {
		lines = append(lines, engine.LineSpec{FromBlockID: lr.From, ToBlockID: lr.To})
	}

	var params []engine.InstanceParameter
	for _, pr := range req.Parameters {
		params = append(params, engine.InstanceParameter{InternalBlockID: pr.InternalBlockID, Value: pr.Value})
	}
	instanceParams, err := engine.NewInstanceParameters(params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inst, err := engine.NewInstance(engine.InstanceConfig{
		InstanceID:     req.InstanceID,
		TemplateID:     req.TemplateID,
		InstanceUserID: req.InstanceUserID,
		InstanceName:   req.InstanceName,
		Parameters:     instanceParams,
		Blocks:         blocks,
		Lines:          lines,
		Logger:         s.log,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inst.AddListener(s.hub)
	if s.snapshots != nil {
		inst.AddListener(s.snapshots)
	}

	if err := s.unit.AddInstance(inst); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

type commandRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) putCommand(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	instanceID, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "invalid instance id", http.StatusBadRequest)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid command body", http.StatusBadRequest)
		return
	}

	kind, ok := parseCommandKind(req.Kind)
	if !ok {
		http.Error(w, "unknown command kind", http.StatusBadRequest)
		return
	}

	if err := s.unit.PutCommand(engine.Command{Kind: kind, InstanceID: instanceID}); err != nil {
		s.log.Warn("putCommand rejected", logger.Fields{"instance_id": instanceID, "error": err.Error()})
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func parseCommandKind(s string) (engine.CommandKind, bool) {
	switch s {
	case "setReady":
		return engine.CmdSetReady, true
	case "pause":
		return engine.CmdPause, true
	case "resume":
		return engine.CmdResume, true
	case "stop":
		return engine.CmdStop, true
	case "abort":
		return engine.CmdAbort, true
	case "reset":
		return engine.CmdReset, true
	case "remove":
		return engine.CmdRemove, true
	default:
		return 0, false
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
