package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/backstage/services/fleet/handlers"

	"github.com/gin-gonic/gin"
)

// listOptions reads paging and sorting from the reserved query parameters
// and treats every other parameter as an equality filter
func listOptions(c *gin.Context) (handlers.ListOptions, error) {
	opts := handlers.ListOptions{Filters: make(map[string]string)}

	for key, values := range c.Request.URL.Query() {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		switch key {
		case "limit", "offset":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return handlers.ListOptions{}, fmt.Errorf("%s must be a non-negative integer", key)
			}
			if key == "limit" {
				opts.Limit = n
			} else {
				opts.Offset = n
			}
		case "sort":
			opts.SortBy = value
		case "order":
			switch strings.ToLower(value) {
			case "asc":
			case "desc":
				opts.Desc = true
			default:
				return handlers.ListOptions{}, fmt.Errorf("order must be asc or desc")
			}
		default:
			opts.Filters[key] = value
		}
	}
	return opts, nil
}

// dayLayout is the format of date-only query parameters
const dayLayout = "2006-01-02"

// timeParam reads an optional query parameter given either as a date or as
// an RFC 3339 timestamp
func timeParam(c *gin.Context, key string) (*time.Time, error) {
	value := c.Query(key)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(dayLayout, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD) or an RFC 3339 timestamp", key)
	}
	return &t, nil
}

func (s *Server) listDeliveries(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	views, err := s.h.Deliveries.ListDeliveries(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) createDelivery(c *gin.Context) {
	var cmd handlers.CreateDeliveryCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.ActorID = actorID(c)

	view, err := s.h.Deliveries.HandleCreateDelivery(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) getDelivery(c *gin.Context) {
	view, err := s.h.Deliveries.GetDelivery(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) updateDelivery(c *gin.Context) {
	var cmd handlers.UpdateDeliveryCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.DeliveryID = c.Param("id")
	cmd.ActorID = actorID(c)

	view, err := s.h.Deliveries.HandleUpdateDelivery(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) deleteDelivery(c *gin.Context) {
	err := s.h.Deliveries.HandleDeleteDelivery(c.Request.Context(), handlers.DeleteDeliveryCommand{
		DeliveryID: c.Param("id"),
		ActorID:    actorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) transitionDelivery(c *gin.Context) {
	var cmd handlers.TransitionDeliveryCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.DeliveryID = c.Param("id")
	cmd.ActorID = actorID(c)

	view, err := s.h.Deliveries.HandleTransition(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getManifest(c *gin.Context) {
	manifest, err := s.h.Deliveries.GetManifest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, manifest)
}

func (s *Server) sequenceDeliveries(c *gin.Context) {
	var cmd handlers.SequenceDeliveriesCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.ActorID = actorID(c)

	views, err := s.h.Deliveries.HandleSequence(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) listDriverDeliveries(c *gin.Context) {
	day := time.Now().UTC()
	if value := c.Query("date"); value != "" {
		t, err := time.Parse(dayLayout, value)
		if err != nil {
			badRequest(c, fmt.Errorf("date must be formatted YYYY-MM-DD"))
			return
		}
		day = t
	}
	views, err := s.h.Deliveries.ListDriverDeliveries(c.Request.Context(), c.Param("id"), day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}
