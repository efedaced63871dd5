package debugapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/fdp"
)

func dieParam(c *gin.Context) (addr.DieID, bool) {
	n, err := strconv.Atoi(c.Param("die"))
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "invalid die index"})
		return 0, false
	}
	return addr.DieID(n), true
}

func rgParam(c *gin.Context, eg *fdp.EnduranceGroup) (fdp.RGID, bool) {
	n, err := strconv.Atoi(c.Param("rg"))
	if err != nil || n < 0 || n >= len(eg.RGs) {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "invalid reclaim group index"})
		return 0, false
	}
	return fdp.RGID(n), true
}
