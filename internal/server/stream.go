package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/marketscout/internal/agent/core"
)

// stream runs the workflow on a background goroutine and forwards progress
// events as Server-Sent Events. The drain loop polls the reporter on a fixed
// cadence and ends after forwarding exactly one terminal event.
func (h *ResearchHandler) stream(c echo.Context) error {
	if h.Orch == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "llm provider not configured")
	}
	req, err := h.parseRequest(c)
	if err != nil {
		return err
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	researchID := uuid.NewString()
	reporter := core.NewReporter(256)

	// The run outlives a dropped client connection; its report still lands
	// in storage.
	runCtx := context.Background()
	go func() {
		env := h.Orch.Execute(runCtx, req, reporter)
		if env.Status == core.StatusCompleted {
			if err := h.Storage.SaveReport(runCtx, researchID, env); err != nil {
				h.Logger.Printf("saving streamed report %s failed: %v", researchID, err)
			}
		}
	}()

	send := func(ev core.Event) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := resp.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(core.Event{Agent: core.AgentResearch, Status: "queued"}); err != nil {
		return nil
	}

	interval := h.StreamInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	clientGone := c.Request().Context().Done()
	for {
		select {
		case <-clientGone:
			return nil
		case <-ticker.C:
			// The terminal event is always the last one published, so the
			// drain that sees it is the last drain.
			for _, ev := range reporter.Poll() {
				if err := send(ev); err != nil {
					return nil
				}
				if ev.Terminal() {
					return nil
				}
			}
		}
	}
}
