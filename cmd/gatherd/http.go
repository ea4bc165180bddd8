package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxelgather.ai/internal/protocol"
	"voxelgather.ai/internal/sim/gather/task"
	"voxelgather.ai/internal/sim/runner"
)

const maxGatherBody = 16 << 10

// gatherer is the part of the runner the HTTP API drives.
type gatherer interface {
	Submit(ctx context.Context, agentID, taskID string, goal task.Goal) (task.Report, error)
	Report(ctx context.Context, agentID string) (runner.AgentReport, error)
}

type api struct {
	g            gatherer
	defaultAgent string
	metrics      prometheus.Gatherer
	log          *log.Logger
}

func newAPI(g gatherer, defaultAgent string, reg prometheus.Gatherer, logger *log.Logger) *api {
	return &api{g: g, defaultAgent: defaultAgent, metrics: reg, log: logger}
}

func (a *api) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	if a.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("POST /v1/gather", a.handleGather)
	mux.HandleFunc("GET /v1/agents/{id}", a.handleAgent)
	return mux
}

// handleGather accepts a GATHER message and answers with an ACK carrying the
// new task id. A target that resolves to nothing is rejected with the task's
// reason.
func (a *api) handleGather(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxGatherBody))
	if err != nil {
		writeAck(rw, http.StatusBadRequest, protocol.AckMsg{Code: protocol.ErrBadRequest, Message: err.Error()})
		return
	}
	msg, err := protocol.DecodeGather(body)
	if err != nil {
		writeAck(rw, http.StatusBadRequest, protocol.AckMsg{Code: protocol.ErrProtoBadRequest, Message: err.Error()})
		return
	}
	agentID := strings.TrimSpace(msg.AgentID)
	if agentID == "" {
		agentID = a.defaultAgent
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	rep, err := a.g.Submit(ctx, agentID, "", task.Goal{Descriptor: msg.Target, Count: msg.Count, Radius: msg.Radius})
	switch {
	case errors.Is(err, runner.ErrUnknownAgent):
		writeAck(rw, http.StatusNotFound, protocol.AckMsg{AckFor: msg.ReqID, Code: protocol.ErrBadRequest, Message: err.Error()})
		return
	case err != nil:
		a.log.Printf("gather %s: %v", agentID, err)
		writeAck(rw, http.StatusServiceUnavailable, protocol.AckMsg{AckFor: msg.ReqID, Code: protocol.ErrInternal, Message: err.Error()})
		return
	}
	if rep.State == task.Failed.String() {
		writeAck(rw, http.StatusUnprocessableEntity, protocol.AckMsg{
			AckFor:  msg.ReqID,
			Code:    protocol.ErrInvalidTarget,
			Message: rep.Reason,
			TaskID:  rep.TaskID,
		})
		return
	}
	a.log.Printf("gather %s: task %s %d x %q", agentID, rep.TaskID, msg.Count, msg.Target)
	writeAck(rw, http.StatusAccepted, protocol.AckMsg{AckFor: msg.ReqID, Accepted: true, TaskID: rep.TaskID})
}

func (a *api) handleAgent(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	rep, err := a.g.Report(ctx, r.PathValue("id"))
	switch {
	case errors.Is(err, runner.ErrUnknownAgent):
		http.Error(rw, "unknown agent", http.StatusNotFound)
		return
	case err != nil:
		http.Error(rw, err.Error(), http.StatusServiceUnavailable)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(rep)
}

func writeAck(rw http.ResponseWriter, status int, ack protocol.AckMsg) {
	ack.Type = protocol.TypeAck
	ack.ProtocolVersion = protocol.Version
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(ack)
}
