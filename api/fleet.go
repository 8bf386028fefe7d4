package api

import (
	"net/http"

	"example.com/backstage/services/fleet/handlers"

	"github.com/gin-gonic/gin"
)

// Customers

func (s *Server) listCustomers(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	customers, err := s.h.Customers.ListCustomers(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (s *Server) createCustomer(c *gin.Context) {
	var in handlers.CustomerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	customer, err := s.h.Customers.HandleCreateCustomer(c.Request.Context(), handlers.CreateCustomerCommand{
		ActorID:       actorID(c),
		CustomerInput: in,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (s *Server) getCustomer(c *gin.Context) {
	customer, err := s.h.Customers.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (s *Server) updateCustomer(c *gin.Context) {
	var in handlers.CustomerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	customer, err := s.h.Customers.HandleUpdateCustomer(c.Request.Context(), handlers.UpdateCustomerCommand{
		CustomerID:    c.Param("id"),
		ActorID:       actorID(c),
		CustomerInput: in,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (s *Server) deleteCustomer(c *gin.Context) {
	err := s.h.Customers.HandleDeleteCustomer(c.Request.Context(), handlers.DeleteCustomerCommand{
		CustomerID: c.Param("id"),
		ActorID:    actorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) archiveCustomer(c *gin.Context) {
	customer, err := s.h.Customers.HandleArchiveCustomer(c.Request.Context(), handlers.ArchiveCustomerCommand{
		CustomerID: c.Param("id"),
		ActorID:    actorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// Vehicles

func (s *Server) listVehicles(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	vehicles, err := s.h.Vehicles.ListVehicles(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

func (s *Server) createVehicle(c *gin.Context) {
	var in handlers.VehicleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	vehicle, err := s.h.Vehicles.HandleCreateVehicle(c.Request.Context(), handlers.CreateVehicleCommand{
		ActorID:      actorID(c),
		VehicleInput: in,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

func (s *Server) getVehicle(c *gin.Context) {
	vehicle, err := s.h.Vehicles.GetVehicle(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

func (s *Server) updateVehicle(c *gin.Context) {
	var in handlers.VehicleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	vehicle, err := s.h.Vehicles.HandleUpdateVehicle(c.Request.Context(), handlers.UpdateVehicleCommand{
		VehicleID:    c.Param("id"),
		ActorID:      actorID(c),
		VehicleInput: in,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

func (s *Server) deleteVehicle(c *gin.Context) {
	err := s.h.Vehicles.HandleDeleteVehicle(c.Request.Context(), handlers.DeleteVehicleCommand{
		VehicleID: c.Param("id"),
		ActorID:   actorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listMaintenance(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	records, err := s.h.Vehicles.ListMaintenance(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) addMaintenance(c *gin.Context) {
	var cmd handlers.AddMaintenanceCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.VehicleID = c.Param("id")
	cmd.ActorID = actorID(c)

	record, err := s.h.Vehicles.HandleAddMaintenance(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) getVehicleStats(c *gin.Context) {
	stats, err := s.h.Vehicles.GetStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listInspections(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	inspections, err := s.h.Vehicles.ListInspections(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inspections)
}

func (s *Server) recordInspection(c *gin.Context) {
	var cmd handlers.RecordInspectionCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.VehicleID = c.Param("id")
	cmd.ActorID = actorID(c)

	inspection, err := s.h.Vehicles.HandleRecordInspection(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inspection)
}

// Drivers

func (s *Server) listDrivers(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	drivers, err := s.h.Drivers.ListDrivers(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, drivers)
}

func (s *Server) createDriver(c *gin.Context) {
	var in handlers.DriverInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	driver, err := s.h.Drivers.HandleCreateDriver(c.Request.Context(), handlers.CreateDriverCommand{
		ActorID:     actorID(c),
		DriverInput: in,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, driver)
}

func (s *Server) getDriver(c *gin.Context) {
	driver, err := s.h.Drivers.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func (s *Server) updateDriver(c *gin.Context) {
	var in handlers.DriverInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	driver, err := s.h.Drivers.HandleUpdateDriver(c.Request.Context(), handlers.UpdateDriverCommand{
		DriverID:    c.Param("id"),
		ActorID:     actorID(c),
		DriverInput: in,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func (s *Server) deleteDriver(c *gin.Context) {
	err := s.h.Drivers.HandleDeleteDriver(c.Request.Context(), handlers.DeleteDriverCommand{
		DriverID: c.Param("id"),
		ActorID:  actorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Incidents

func (s *Server) listIncidents(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	incidents, err := s.h.Incidents.ListIncidents(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, incidents)
}

func (s *Server) reportIncident(c *gin.Context) {
	var in handlers.IncidentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	incident, err := s.h.Incidents.HandleReportIncident(c.Request.Context(), handlers.CreateIncidentCommand{
		ActorID:       actorID(c),
		IncidentInput: in,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, incident)
}

func (s *Server) getIncident(c *gin.Context) {
	incident, err := s.h.Incidents.GetIncident(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, incident)
}

func (s *Server) updateIncident(c *gin.Context) {
	var in handlers.IncidentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	incident, err := s.h.Incidents.HandleUpdateIncident(c.Request.Context(), handlers.UpdateIncidentCommand{
		IncidentID:    c.Param("id"),
		ActorID:       actorID(c),
		IncidentInput: in,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, incident)
}

func (s *Server) deleteIncident(c *gin.Context) {
	err := s.h.Incidents.HandleDeleteIncident(c.Request.Context(), handlers.DeleteIncidentCommand{
		IncidentID: c.Param("id"),
		ActorID:    actorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) addIncidentComment(c *gin.Context) {
	var cmd handlers.AddIncidentCommentCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, err)
		return
	}
	cmd.IncidentID = c.Param("id")
	cmd.ActorID = actorID(c)

	comment, err := s.h.Incidents.HandleAddComment(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (s *Server) listIncidentComments(c *gin.Context) {
	comments, err := s.h.Incidents.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (s *Server) incidentSummary(c *gin.Context) {
	from, err := timeParam(c, "from")
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := timeParam(c, "to")
	if err != nil {
		badRequest(c, err)
		return
	}
	summary, err := s.h.Incidents.GetSummary(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
