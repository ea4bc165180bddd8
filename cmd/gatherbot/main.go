package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"

	"voxelgather.ai/internal/protocol"
	"voxelgather.ai/internal/sim/runner"
)

func main() {
	var (
		base   = flag.String("url", "http://localhost:8080", "gatherd base url")
		agent  = flag.String("agent", "", "agent id (default: gatherd's first agent)")
		target = flag.String("target", "iron", "what to gather")
		count  = flag.Int("count", 4, "units to gather")
		radius = flag.Int("radius", 0, "search radius (0: server default)")
		poll   = flag.Duration("poll", 500*time.Millisecond, "report poll interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := &client{base: strings.TrimRight(*base, "/"), http: &http.Client{Timeout: 10 * time.Second}}
	ack, err := c.gather(ctx, protocol.GatherMsg{
		Type:            protocol.TypeGather,
		ProtocolVersion: protocol.Version,
		ReqID:           uuid.NewString(),
		AgentID:         *agent,
		Target:          *target,
		Count:           *count,
		Radius:          *radius,
	})
	if err != nil {
		logger.Fatalf("gather: %v", err)
	}
	if !ack.Accepted {
		logger.Fatalf("rejected: %s %s", ack.Code, ack.Message)
	}
	logger.Printf("task %s accepted", ack.TaskID)

	agentID := *agent
	if agentID == "" {
		agentID = "A1"
	}
	rep, err := c.waitTask(ctx, agentID, ack.TaskID, *poll, func(r runner.AgentReport) {
		logger.Printf("state=%s mined=%d/%d pos=%.1f,%.1f,%.1f", r.Task.State, r.Task.Mined, r.Task.Desired, r.Pos[0], r.Pos[1], r.Pos[2])
	})
	if err != nil {
		logger.Fatalf("wait: %v", err)
	}
	logger.Printf("done: state=%s mined=%d reason=%q items=%v", rep.Task.State, rep.Task.Mined, rep.Task.Reason, rep.Items)
}

type client struct {
	base string
	http *http.Client
}

func (c *client) gather(ctx context.Context, msg protocol.GatherMsg) (protocol.AckMsg, error) {
	var ack protocol.AckMsg
	body, err := json.Marshal(msg)
	if err != nil {
		return ack, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/gather", bytes.NewReader(body))
	if err != nil {
		return ack, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return ack, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return ack, fmt.Errorf("decode ack (status %d): %w", resp.StatusCode, err)
	}
	return ack, nil
}

func (c *client) agent(ctx context.Context, id string) (runner.AgentReport, error) {
	var rep runner.AgentReport
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/agents/"+id, nil)
	if err != nil {
		return rep, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return rep, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return rep, fmt.Errorf("agent %s: status %d", id, resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&rep)
	return rep, err
}

// waitTask polls the agent until taskID reaches a terminal state. progress
// sees every report that carries the task.
func (c *client) waitTask(ctx context.Context, agentID, taskID string, every time.Duration, progress func(runner.AgentReport)) (runner.AgentReport, error) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		rep, err := c.agent(ctx, agentID)
		if err != nil {
			return rep, err
		}
		if rep.Task == nil || rep.Task.TaskID != taskID {
			return rep, fmt.Errorf("task %s is no longer current on %s", taskID, agentID)
		}
		if progress != nil {
			progress(rep)
		}
		if rep.Task.State == "COMPLETED" || rep.Task.State == "FAILED" {
			return rep, nil
		}
		select {
		case <-ctx.Done():
			return rep, ctx.Err()
		case <-t.C:
		}
	}
}
