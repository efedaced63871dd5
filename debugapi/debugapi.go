// Package debugapi exposes a read-only introspection HTTP surface over a
// running core.Core: free-block counts, victim-bucket histograms, and FDP
// RU occupancy, for operators of the demo binary (cmd/ftlsim).
// This mirrors sop's restapi package (gin + swaggo), but drops the
// okta-jwt-verifier bearer-token layer restapi/main wires in: there is no
// multi-tenant host boundary for a local debug endpoint to protect.
//
// @BasePath /api/v1
package debugapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/openssd-go/ftlcore/core"
)

// Server is the introspection HTTP surface bound to one Core.
type Server struct {
	c      *core.Core
	router *gin.Engine
}

// New builds a Server wired to c and registers its routes.
func New(c *core.Core) *Server {
	s := &Server{c: c, router: gin.Default()}
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/vbm/:die/free", s.getFreeCount)
		v1.GET("/vbm/:die/buckets", s.getVictimBuckets)
		v1.GET("/fdp/rg/:rg/rus", s.getRUOccupancy)
		v1.GET("/fdp/rg/:rg/free", s.getFreeRUCount)
	}
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
	return s
}

// Run starts the HTTP server on addr, blocking (gin.Engine.Run's contract).
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// getFreeCount godoc
// @Summary getFreeCount returns a die's free-block count
// @Description Returns the classic Virtual Block Map's free and reserved-free counts for one die.
// @Tags VBM
// @Produce json
// @Param die path int true "Die index"
// @Success 200 {object} map[string]int
// @Failure 404 {object} map[string]string
// @Router /vbm/{die}/free [get]
func (s *Server) getFreeCount(c *gin.Context) {
	die, ok := dieParam(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{
		"free":     s.c.VBM().FreeCount(die),
		"reserved": s.c.VBM().ReservedFreeCount(die),
	})
}

// getVictimBuckets godoc
// @Summary getVictimBuckets returns a die's victim-bucket histogram
// @Description Returns the count of blocks bucketed at each invalid-slice level for one die (spec P3).
// @Tags VBM
// @Produce json
// @Param die path int true "Die index"
// @Success 200 {object} map[string]int
// @Failure 404 {object} map[string]string
// @Router /vbm/{die}/buckets [get]
func (s *Server) getVictimBuckets(c *gin.Context) {
	die, ok := dieParam(c)
	if !ok {
		return
	}
	geo := s.c.Geometry()
	hist := make(map[int]int, geo.SlicesPerBlock+1)
	for k := 0; k <= geo.SlicesPerBlock; k++ {
		hist[k] = s.c.VBM().VictimBucketSize(die, k)
	}
	c.IndentedJSON(http.StatusOK, hist)
}

// getRUOccupancy godoc
// @Summary getRUOccupancy returns a Reclaim Group's RU state summary
// @Description Returns every RU's owning RUH, invalid-slice count, free flag, and erase count for one Reclaim Group (spec P4). Active and victim state are not reported.
// @Tags FDP
// @Produce json
// @Param rg path int true "Reclaim Group index"
// @Success 200 {object} []map[string]any
// @Failure 404 {object} map[string]string
// @Router /fdp/rg/{rg}/rus [get]
func (s *Server) getRUOccupancy(c *gin.Context) {
	eg := s.c.EnduranceGroup()
	if eg == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "fdp not configured"})
		return
	}
	rgID, ok := rgParam(c, eg)
	if !ok {
		return
	}
	rg := &eg.RGs[rgID]
	out := make([]gin.H, 0, len(rg.RUs))
	for i := range rg.RUs {
		ru := &rg.RUs[i]
		out = append(out, gin.H{
			"rugId":         i,
			"ruhId":         ru.RUHID,
			"invalidSlices": ru.InvalidSlices,
			"free":          ru.Free,
			"eraseCount":    ru.EraseCount,
		})
	}
	c.IndentedJSON(http.StatusOK, out)
}

// getFreeRUCount godoc
// @Summary getFreeRUCount returns a Reclaim Group's free-RU count
// @Tags FDP
// @Produce json
// @Param rg path int true "Reclaim Group index"
// @Success 200 {object} map[string]int
// @Failure 404 {object} map[string]string
// @Router /fdp/rg/{rg}/free [get]
func (s *Server) getFreeRUCount(c *gin.Context) {
	eg := s.c.EnduranceGroup()
	if eg == nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "fdp not configured"})
		return
	}
	rgID, ok := rgParam(c, eg)
	if !ok {
		return
	}
	rg := &eg.RGs[rgID]
	c.IndentedJSON(http.StatusOK, gin.H{
		"free":     rg.FreeCount(),
		"reserved": rg.ReservedFreeRUCount(),
	})
}
