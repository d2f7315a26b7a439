package web

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-facesense/internal/log"
	"github.com/teslashibe/go-facesense/pkg/expression"
	"github.com/teslashibe/go-facesense/pkg/hub"
	"github.com/teslashibe/go-facesense/pkg/landmark"
	"github.com/teslashibe/go-facesense/pkg/pipeline"
)

// FramesResponse is returned for every ingested tick.
type FramesResponse struct {
	pipeline.Result
	Errors []string `json:"errors,omitempty"`
}

// StatusResponse describes the service's current state.
type StatusResponse struct {
	Ticks    uint64                `json:"ticks"`
	Mode     expression.Mode       `json:"mode"`
	Last     pipeline.Result       `json:"last"`
	Subjects []expression.Snapshot `json:"subjects"`
	Clients  int                   `json:"status_clients"`
}

// handleFrames processes one tick posted as JSON
func (s *Server) handleFrames(c *fiber.Ctx) error {
	var tick pipeline.Tick
	if err := c.BodyParser(&tick); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid tick: " + err.Error(),
		})
	}
	if err := s.validate.Struct(tick); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp, status := s.process(c.UserContext(), tick)
	return c.Status(status).JSON(resp)
}

// process runs a tick and maps face errors onto the response.
func (s *Server) process(ctx context.Context, tick pipeline.Tick) (FramesResponse, int) {
	result, err := s.processor.Process(ctx, tick)
	resp := FramesResponse{Result: result}
	if err == nil {
		return resp, fiber.StatusOK
	}

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			resp.Errors = append(resp.Errors, e.Error())
		}
	} else {
		resp.Errors = []string{err.Error()}
	}
	log.Warn("tick had malformed faces", "seq", tick.Seq, "skipped", len(resp.Errors))

	if len(result.Faces) == 0 && errors.Is(err, landmark.ErrMalformedFrame) {
		return resp, fiber.StatusUnprocessableEntity
	}
	return resp, fiber.StatusOK
}

// handleStatus returns the latest result and all subject counters
func (s *Server) handleStatus(c *fiber.Ctx) error {
	last, ticks := s.processor.Last()
	tracker := s.processor.Tracker()
	return c.JSON(StatusResponse{
		Ticks:    ticks,
		Mode:     tracker.Mode(),
		Last:     last,
		Subjects: tracker.Snapshots(),
		Clients:  s.statusHub.ClientCount(),
	})
}

// handleListSubjects returns every subject's counters
func (s *Server) handleListSubjects(c *fiber.Ctx) error {
	return c.JSON(s.processor.Tracker().Snapshots())
}

// handleGetSubject returns one subject's counters
func (s *Server) handleGetSubject(c *fiber.Ctx) error {
	snap, err := s.processor.Tracker().Snapshot(c.Params("id"))
	if errors.Is(err, expression.ErrUnknownSubject) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(snap)
}

// handleDeleteSubject ends a subject's session
func (s *Server) handleDeleteSubject(c *fiber.Ctx) error {
	id := c.Params("id")
	if !s.processor.Tracker().Remove(id) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": expression.ErrUnknownSubject.Error(),
		})
	}
	log.Info("subject removed", "subject", id)
	return c.SendStatus(fiber.StatusNoContent)
}

// handleGroups returns the landmark groups for renderers
func (s *Server) handleGroups(c *fiber.Ctx) error {
	return c.JSON(pipeline.Groups())
}

// handleThresholds returns the active trigger levels
func (s *Server) handleThresholds(c *fiber.Ctx) error {
	return c.JSON(s.processor.Tracker().Thresholds())
}

// handleIngestWS streams ticks in and results out on one connection.
// Subjects are namespaced by a per-connection session id and their state
// is discarded when the connection closes.
func (s *Server) handleIngestWS(c *websocket.Conn) {
	session := uuid.NewString()
	logger := log.With("session", session)
	logger.Info("ingest session started", "remote", c.RemoteAddr().String())

	seen := make(map[string]bool)
	defer func() {
		tracker := s.processor.Tracker()
		if tracker.Mode() == expression.PerSubject {
			for subject := range seen {
				tracker.Remove(subject)
			}
		}
		logger.Info("ingest session ended", "subjects", len(seen))
	}()

	if err := c.WriteJSON(fiber.Map{"session": session}); err != nil {
		return
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		var tick pipeline.Tick
		if err := json.Unmarshal(data, &tick); err != nil {
			if err := c.WriteJSON(fiber.Map{"error": "invalid tick: " + err.Error()}); err != nil {
				return
			}
			continue
		}
		if err := s.validate.Struct(tick); err != nil {
			if err := c.WriteJSON(fiber.Map{"error": err.Error()}); err != nil {
				return
			}
			continue
		}

		for i := range tick.Faces {
			name := tick.Faces[i].Subject
			if name == "" {
				name = fmt.Sprintf("face_%d", i)
			}
			tick.Faces[i].Subject = session + ":" + name
			seen[tick.Faces[i].Subject] = true
		}

		resp, _ := s.process(context.Background(), tick)
		if err := c.WriteJSON(resp); err != nil {
			return
		}
	}
}

// handleStatusWS subscribes a client to throttled results
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	if client == nil {
		return
	}
	client.Run()
}
