package httpapi

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/firewatch/caniburn/internal/fire"
	"github.com/firewatch/caniburn/internal/geo"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, watch *fire.WatchService, status *fire.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/burn-status", func(c *fiber.Ctx) error {
		coords, err := parseCoordinatesQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result, err := watch.Evaluate(c.Context(), coords)
		if err != nil {
			return err
		}

		return c.JSON(result)
	})

	v1.Get("/providers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"providers": status.ProviderNames(),
		})
	})

	v1.Get("/providers/:name/coverage", func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("name"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid provider name")
		}
		return c.JSON(fiber.Map{
			"provider": name,
			"coverage": status.CoverageOf(name),
		})
	})
}

// ErrorHandler converts domain errors into their HTTP representation and
// everything else into a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errCode := ""

	var fe *fire.Error
	var httpErr *fiber.Error
	if errors.As(err, &fe) {
		code = fe.StatusCode
		errCode = fe.Code
	} else if errors.As(err, &httpErr) {
		code = httpErr.Code
	}

	body := fiber.Map{
		"error":   true,
		"message": message,
	}
	if errCode != "" {
		body["code"] = errCode
	}
	return c.Status(code).JSON(body)
}

// coordinatesQuery holds the lat/lon query parameters.
type coordinatesQuery struct {
	Lat string `validate:"required"`
	Lon string `validate:"required"`
}

func parseCoordinatesQuery(c *fiber.Ctx) (geo.Coordinates, error) {
	q := coordinatesQuery{
		Lat: c.Query("lat"),
		Lon: c.Query("lon"),
	}
	if err := validate.Struct(q); err != nil {
		return geo.Coordinates{}, err
	}

	lat, err := strconv.ParseFloat(q.Lat, 64)
	if err != nil {
		return geo.Coordinates{}, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(q.Lon, 64)
	if err != nil {
		return geo.Coordinates{}, errors.New("lon must be a number")
	}

	return geo.Coordinates{Latitude: lat, Longitude: lon}, nil
}
