package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-collector/internal/store"
	"github.com/i474232898/weather-collector/internal/weather"
)

var validate = validator.New()

// ReportSource is the read side of the cycle journal.
type ReportSource interface {
	LatestReport() (weather.CycleReport, error)
	RecentReports(limit int) ([]weather.CycleReport, error)
}

const defaultCyclesLimit = 20

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service ReportSource) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-collector",
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/cycles/latest", func(c *fiber.Ctx) error {
		report, err := service.LatestReport()
		if err != nil {
			return reportError(err)
		}
		return c.JSON(report)
	})

	v1.Get("/cycles", func(c *fiber.Ctx) error {
		var q cyclesQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		reports, err := service.RecentReports(q.Limit)
		if err != nil {
			return reportError(err)
		}
		return c.JSON(fiber.Map{
			"count":  len(reports),
			"cycles": reports,
		})
	})
}

func reportError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "no cycles recorded yet")
	case errors.Is(err, weather.ErrNoJournal):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read cycle journal")
	}
}

// cyclesQuery holds query parameters for the cycles endpoint.
type cyclesQuery struct {
	Limit int `validate:"gte=1,lte=100"`
}

func (q *cyclesQuery) bind(c *fiber.Ctx) error {
	q.Limit = defaultCyclesLimit

	raw := c.Query("limit")
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return errors.New("limit must be an integer")
	}
	q.Limit = n
	return nil
}
