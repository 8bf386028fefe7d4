package api

import (
	"net/http"

	"example.com/backstage/services/fleet/handlers"

	"github.com/gin-gonic/gin"
)

func (s *Server) listContainers(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	views, err := s.h.Containers.ListContainers(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) createContainer(c *gin.Context) {
	var cmd handlers.CreateContainerCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.ActorID = actorID(c)

	view, err := s.h.Containers.HandleCreateContainer(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) getContainer(c *gin.Context) {
	view, err := s.h.Containers.GetContainer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getContainerByBarcode(c *gin.Context) {
	view, err := s.h.Containers.GetContainerByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) updateContainer(c *gin.Context) {
	var cmd handlers.UpdateContainerCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.ContainerID = c.Param("id")
	cmd.ActorID = actorID(c)

	view, err := s.h.Containers.HandleUpdateContainer(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) deleteContainer(c *gin.Context) {
	err := s.h.Containers.HandleDeleteContainer(c.Request.Context(), handlers.DeleteContainerCommand{
		ContainerID: c.Param("id"),
		ActorID:     actorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) recordContainerAction(c *gin.Context) {
	var cmd handlers.RecordContainerActionCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.ContainerID = c.Param("id")
	cmd.ActorID = actorID(c)

	result, err := s.h.Containers.HandleRecordAction(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listContainerHistory(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	rows, err := s.h.Containers.ListHistory(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
