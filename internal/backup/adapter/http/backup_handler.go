package http

import (
	"net/http"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/backup/usecase"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// BackupHandler serves the backup and restore admin API.
type BackupHandler struct {
	backups  usecase.BackupUsecase
	restores usecase.RestoreUsecase
	log      logger.Logger
}

// NewBackupHandler creates a handler over the backup and restore usecases.
func NewBackupHandler(backups usecase.BackupUsecase, restores usecase.RestoreUsecase, log logger.Logger) *BackupHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &BackupHandler{
		backups:  backups,
		restores: restores,
		log:      log.WithComponent("backup_http"),
	}
}

// CreateBackupRequest selects the logical collections to back up.
type CreateBackupRequest struct {
	Collections []string `json:"collections"`
}

// StartRestoreRequest selects the restore mode and optionally a subset of
// the snapshot's collections.
type StartRestoreRequest struct {
	Mode        string   `json:"mode"`
	Collections []string `json:"collections,omitempty"`
}

// RegisterRoutes mounts the API under /api/v1/admin behind guards.
func (h *BackupHandler) RegisterRoutes(router fiber.Router, guards ...fiber.Handler) {
	admin := router.Group("/api/v1/admin", guards...)

	admin.Get("/collections", h.ListCollections)

	admin.Get("/backups", h.ListBackups)
	admin.Get("/backups/stats", h.Statistics)
	admin.Post("/backups", h.CreateBackup)
	admin.Post("/backups/sweep", h.SweepExpired)
	admin.Get("/backups/:id", h.GetBackup)
	admin.Delete("/backups/:id", h.DeleteBackup)
	admin.Post("/backups/:id/restore", h.StartRestore)

	admin.Get("/restores/:id", h.RestoreProgress)
	admin.Delete("/restores/:id", h.CancelRestore)

	admin.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	admin.Get("/ws/restores/:id", websocket.New(h.StreamRestore))
}

func (h *BackupHandler) ListCollections(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"collections": h.backups.Collections()})
}

func (h *BackupHandler) ListBackups(c *fiber.Ctx) error {
	backups, err := h.backups.ListBackups(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"backups": backups, "count": len(backups)})
}

func (h *BackupHandler) Statistics(c *fiber.Ctx) error {
	stats, err := h.backups.Statistics(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(stats)
}

func (h *BackupHandler) GetBackup(c *fiber.Ctx) error {
	meta, err := h.backups.GetBackup(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(meta)
}

// CreateBackup runs the backup synchronously and returns its metadata.
func (h *BackupHandler) CreateBackup(c *fiber.Ctx) error {
	var req CreateBackupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "Invalid request body",
		})
	}

	ctx := c.UserContext()
	log := h.log.WithContext(ctx)
	meta, err := h.backups.CreateBackup(ctx, req.Collections, func(p model.BackupProgress) {
		log.Debugf("Backup progress %d%%: %s", p.Percentage, p.Message)
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(meta)
}

func (h *BackupHandler) DeleteBackup(c *fiber.Ctx) error {
	if err := h.backups.DeleteBackup(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BackupHandler) SweepExpired(c *fiber.Ctx) error {
	deleted, err := h.backups.SweepExpired(c.UserContext())
	if err != nil {
		return c.Status(errors.HTTPStatus(err)).JSON(fiber.Map{
			"error":   http.StatusText(errors.HTTPStatus(err)),
			"message": err.Error(),
			"deleted": deleted,
		})
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// StartRestore launches a restore and answers 202 with its run id.
func (h *BackupHandler) StartRestore(c *fiber.Ctx) error {
	var req StartRestoreRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Bad Request",
				"message": "Invalid request body",
			})
		}
	}
	mode, err := model.ParseRestoreMode(req.Mode)
	if err != nil {
		return h.fail(c, err)
	}

	backupID := c.Params("id")
	restoreID, err := h.restores.Start(c.UserContext(), backupID, model.RestoreOptions{
		Mode:        mode,
		Collections: req.Collections,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"restoreId":   restoreID,
		"backupId":    backupID,
		"mode":        mode,
		"progressUrl": "/api/v1/admin/restores/" + restoreID,
	})
}

func (h *BackupHandler) RestoreProgress(c *fiber.Ctx) error {
	progress, err := h.restores.Progress(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"progress":   progress,
		"percentage": progress.Percentage(),
	})
}

func (h *BackupHandler) CancelRestore(c *fiber.Ctx) error {
	if err := h.restores.Cancel(c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (h *BackupHandler) fail(c *fiber.Ctx, err error) error {
	status := errors.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.log.WithContext(c.UserContext()).WithError(err).Errorf("%s %s failed", c.Method(), c.Path())
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   http.StatusText(status),
		"message": err.Error(),
	})
}
