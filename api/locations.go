package api

import (
	"net/http"

	"example.com/backstage/services/fleet/handlers"

	"github.com/gin-gonic/gin"
)

func (s *Server) createLocation(c *gin.Context) {
	var cmd handlers.CreateLocationCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.ActorID = actorID(c)

	view, err := s.h.Locations.HandleCreateLocation(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) getLocation(c *gin.Context) {
	view, err := s.h.Locations.GetLocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) updateLocation(c *gin.Context) {
	var cmd handlers.UpdateLocationCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.LocationID = c.Param("id")
	cmd.ActorID = actorID(c)

	view, err := s.h.Locations.HandleUpdateLocation(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) deactivateLocation(c *gin.Context) {
	view, err := s.h.Locations.HandleDeactivateLocation(c.Request.Context(), handlers.DeactivateLocationCommand{
		LocationID: c.Param("id"),
		ActorID:    actorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) listLocationDeliveries(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	views, err := s.h.Locations.ListLocationDeliveries(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) listCustomerLocations(c *gin.Context) {
	locations, err := s.h.Locations.ListCustomerLocations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, locations)
}
