package httpapi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/nmoreale/lujan-meteo/internal/meteo"
	"github.com/nmoreale/lujan-meteo/internal/report"
	"github.com/nmoreale/lujan-meteo/internal/store"
)

var validate = validator.New()

// Handler bundles the core components the HTTP surface exposes.
type Handler struct {
	collector *meteo.Collector
	store     *store.Store
	ledger    *store.Ledger
	reports   *report.Generator
	log       logrus.FieldLogger
}

func NewHandler(collector *meteo.Collector, s *store.Store, ledger *store.Ledger, reports *report.Generator, log logrus.FieldLogger) *Handler {
	return &Handler{
		collector: collector,
		store:     s,
		ledger:    ledger,
		reports:   reports,
		log:       log,
	}
}

// Register wires the HTTP routes into the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/status", h.handleStatus)
	app.Post("/save", h.handleSave)
	app.Get("/load", h.handleLoad)
	app.Get("/report", h.handleReport)
	app.Get("/update", h.handleUpdate)
	app.Post("/post-datos-desde-google", h.handleUpdate)
	app.Get("/backup-historico", h.handleBackupDownload)
	app.Get("/verificar-backup", h.handleBackupStats)
}

func (h *Handler) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "status": "online"})
}

func (h *Handler) handleSave(c *fiber.Ctx) error {
	var capture meteo.Capture
	if err := c.BodyParser(&capture); err != nil {
		return failure(c, fiber.StatusBadRequest, fmt.Sprintf("cuerpo JSON inválido: %v", err))
	}

	if err := validate.Struct(&capture); err != nil {
		return failure(c, fiber.StatusBadRequest, meteo.ErrMissingTimestamp.Error())
	}
	if _, err := capture.Time(); err != nil {
		if errors.Is(err, meteo.ErrMissingTimestamp) {
			return failure(c, fiber.StatusBadRequest, err.Error())
		}
		return failure(c, fiber.StatusBadRequest, fmt.Sprintf("timestamp inválido: %v", err))
	}

	if err := h.store.Save(&capture); err != nil {
		h.log.WithError(err).Error("save failed")
		return failure(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{"success": true, "id": capture.ID})
}

func (h *Handler) handleLoad(c *fiber.Ctx) error {
	agg, err := h.store.Load()
	if err != nil {
		h.log.WithError(err).Error("load failed")
		return failure(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"success":           true,
		"historicalData":    agg.HistoricalData,
		"correctionFactors": agg.CorrectionFactors,
	})
}

func (h *Handler) handleReport(c *fiber.Ctx) error {
	rangeKeyword := c.Query("range", "today")
	body := h.reports.Generate(rangeKeyword, time.Now())

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=reporte_%s.csv", rangeKeyword))
	return c.Send(body)
}

func (h *Handler) handleUpdate(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	capture, err := h.collector.Run(ctx)
	if err != nil {
		h.log.WithError(err).Error("update cycle failed")
		return failure(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Datos actualizados (%d cuencas corregidas)", len(capture.CorrectionFactors)),
		"id":      capture.ID,
	})
}

func (h *Handler) handleBackupDownload(c *fiber.Ctx) error {
	path := h.ledger.Path()

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return failure(c, fiber.StatusNotFound, "Archivo no encontrado")
	}
	if err != nil {
		return failure(c, fiber.StatusInternalServerError, err.Error())
	}
	if info.Size() == 0 {
		return failure(c, fiber.StatusBadRequest, "El archivo histórico está vacío")
	}

	return c.Download(path, "historico_meteo.csv")
}

func (h *Handler) handleBackupStats(c *fiber.Ctx) error {
	stats, err := h.ledger.Stats()
	if err != nil {
		h.log.WithError(err).Error("backup verification failed")
		return failure(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"exists":        stats.Exists,
		"size_kb":       stats.SizeKB,
		"last_modified": stats.LastModified,
		"lines":         stats.Lines,
		"mode":          stats.Mode,
	})
}

// failure renders the uniform {success:false, message} payload; no internal
// fault escapes as an opaque body.
func failure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}
