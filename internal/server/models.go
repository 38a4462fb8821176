package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) listModels(c echo.Context) error {
	models, err := s.llm.ListModels(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"models":        models,
		"current_model": s.currentModel(),
	})
}

func (s *Server) loadModel(c echo.Context) error {
	var req struct {
		Model string `json:"model_name"`
	}
	if err := c.Bind(&req); err != nil || req.Model == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Model name not provided")
	}

	s.logger.Printf("loading model %s", req.Model)
	if err := s.llm.Pull(c.Request().Context(), req.Model); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	s.setCurrentModel(req.Model)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":       fmt.Sprintf("Model %s loaded", req.Model),
		"current_model": req.Model,
	})
}

// autoLoadModel makes sure at least one model is available, pulling the
// configured default when the service reports none.
func (s *Server) autoLoadModel(c echo.Context) error {
	ctx := c.Request().Context()
	models, err := s.llm.ListModels(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	if len(models) > 0 {
		current := s.currentModel()
		for _, m := range models {
			if m.Name == current {
				return c.JSON(http.StatusOK, map[string]interface{}{
					"message":       "Model already available",
					"current_model": current,
				})
			}
		}
		s.setCurrentModel(models[0].Name)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"message":       fmt.Sprintf("Switched to available model %s", models[0].Name),
			"current_model": models[0].Name,
		})
	}

	fallback := s.cfg.LLM.Model
	s.logger.Printf("no models available, pulling %s", fallback)
	if err := s.llm.Pull(ctx, fallback); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	s.setCurrentModel(fallback)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":       fmt.Sprintf("Model %s pulled and loaded", fallback),
		"current_model": fallback,
	})
}
