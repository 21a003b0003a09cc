package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

func healthCheck(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := NewHealthCheck(s.Version)

		pingCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		if err := s.DB.Ping(pingCtx); err != nil {
			health.AddComponent("database", "down", err.Error())
		} else {
			health.AddComponent("database", "up", "")
		}

		status := fiber.StatusOK
		if health.Status != "healthy" {
			status = fiber.StatusServiceUnavailable
		}
		return SendJSON(c, status, health)
	}
}

func runSweep(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		closed, err := s.Sweeper.RunOnce(c.Context())
		if err != nil {
			return SendDomainError(c, err)
		}
		return SendSuccess(c, fiber.Map{"closed": closed}, "sweep finished")
	}
}

func runReconcile(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		corrected, err := s.Reconciler.ReconcileWallets(c.Context())
		if err != nil {
			return SendDomainError(c, err)
		}
		return SendSuccess(c, fiber.Map{"corrected": corrected}, "reconciliation finished")
	}
}

func recoverBlocks(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		released, err := s.Reconciler.RecoverOrphanedBlocks(c.Context())
		if err != nil {
			return SendDomainError(c, err)
		}
		return SendSuccess(c, fiber.Map{"released": released}, "orphaned hold recovery finished")
	}
}
