package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// DatabaseChecker verifies database connectivity
type DatabaseChecker func(ctx context.Context) error

// RegistrySizer reports the size of the candidate registry
type RegistrySizer interface {
	Len() int
	Persons() int
}

type HealthHandler struct {
	checkDB  DatabaseChecker
	registry RegistrySizer
}

func NewHealthHandler(checkDB DatabaseChecker, registry RegistrySizer) *HealthHandler {
	return &HealthHandler{
		checkDB:  checkDB,
		registry: registry,
	}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type ReadyResponse struct {
	Status     string `json:"status"`
	Database   string `json:"database"`
	Embeddings int    `json:"embeddings"`
	Persons    int    `json:"persons"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: "0.1.0",
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	resp := ReadyResponse{
		Status:     "ready",
		Database:   "ok",
		Embeddings: h.registry.Len(),
		Persons:    h.registry.Persons(),
	}

	if h.checkDB != nil {
		if err := h.checkDB(c.Context()); err != nil {
			resp.Status = "not_ready"
			resp.Database = "unreachable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
	}

	return c.JSON(resp)
}
