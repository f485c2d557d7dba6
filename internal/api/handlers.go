package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/terminal-bench/fleetcompliance/internal/models"
)

// Request types

type ledgerRequest struct {
	ShipID string           `json:"shipId" binding:"required"`
	Year   int              `json:"year" binding:"gt=0"`
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

type poolMemberRequest struct {
	ShipID   string           `json:"shipId" binding:"required"`
	CBBefore *decimal.Decimal `json:"cbBefore" binding:"required"`
}

type poolRequest struct {
	Year    int                 `json:"year" binding:"gt=0"`
	Members []poolMemberRequest `json:"members" binding:"required,min=2,unique=ShipID,dive"`
}

type applyResponse struct {
	ShipID      string              `json:"shipId"`
	Year        int                 `json:"year"`
	Applied     decimal.Decimal     `json:"applied"`
	Allocations []models.Allocation `json:"allocations"`
}

type poolResponse struct {
	Pool    *models.Pool        `json:"pool"`
	Members []models.PoolMember `json:"members"`
}

type shipYearQuery struct {
	ShipID string `form:"shipId" binding:"required"`
	Year   int    `form:"year" binding:"gt=0"`
}

type routeQuery struct {
	VesselType string `form:"vesselType"`
	FuelType   string `form:"fuelType"`
	Year       int    `form:"year" binding:"omitempty,gt=0"`
}

type idURI struct {
	ID int64 `uri:"id" binding:"gt=0"`
}

// shipYear reads the shipId and year query parameters.
func shipYear(c *gin.Context) (string, int, bool) {
	var q shipYearQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, bindingMessage(err, "invalid query"))
		return "", 0, false
	}
	return q.ShipID, q.Year, true
}

func idParam(c *gin.Context) (int64, bool) {
	var p idURI
	if err := c.ShouldBindUri(&p); err != nil {
		badRequest(c, "invalid id")
		return 0, false
	}
	return p.ID, true
}

// Routes

func (s *Server) listRoutes(c *gin.Context) {
	var q routeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, bindingMessage(err, "invalid query"))
		return
	}
	filter := models.RouteFilter{VesselType: q.VesselType, FuelType: q.FuelType, Year: q.Year}

	routes, err := s.svc.Routes.ListRoutes(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, routes)
}

func (s *Server) compareRoutes(c *gin.Context) {
	results, err := s.svc.Routes.CompareAll(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) setBaseline(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	route, err := s.svc.Routes.SetBaseline(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

// Compliance

func (s *Server) computeBalance(c *gin.Context) {
	shipID, year, ok := shipYear(c)
	if !ok {
		return
	}
	record, err := s.svc.Compliance.ComputeBalance(c.Request.Context(), shipID, year)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) adjustedBalance(c *gin.Context) {
	shipID, year, ok := shipYear(c)
	if !ok {
		return
	}
	adjusted, err := s.svc.Ledger.AdjustedBalance(c.Request.Context(), shipID, year)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, adjusted)
}

// Banking

func (s *Server) bankRecords(c *gin.Context) {
	shipID, year, ok := shipYear(c)
	if !ok {
		return
	}
	records, err := s.svc.Ledger.Records(c.Request.Context(), shipID, year)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) bankSurplus(c *gin.Context) {
	var req ledgerRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := s.svc.Ledger.Bank(c.Request.Context(), req.ShipID, req.Year, *req.Amount)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) applyBanked(c *gin.Context) {
	var req ledgerRequest
	if !bindJSON(c, &req) {
		return
	}

	allocations, err := s.svc.Ledger.Apply(c.Request.Context(), req.ShipID, req.Year, *req.Amount)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if allocations == nil {
		allocations = []models.Allocation{}
	}
	c.JSON(http.StatusOK, applyResponse{
		ShipID:      req.ShipID,
		Year:        req.Year,
		Applied:     *req.Amount,
		Allocations: allocations,
	})
}

// Pools

func (s *Server) createPool(c *gin.Context) {
	var req poolRequest
	if !bindJSON(c, &req) {
		return
	}

	members := make([]models.MemberBalance, len(req.Members))
	for i, m := range req.Members {
		members[i] = models.MemberBalance{ShipID: m.ShipID, CBBefore: *m.CBBefore}
	}
	pool, out, err := s.svc.Pools.CreatePool(c.Request.Context(), req.Year, members)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, poolResponse{Pool: pool, Members: out})
}

func (s *Server) poolMembers(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	members, err := s.svc.Pools.Members(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}
