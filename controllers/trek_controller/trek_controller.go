package trek_controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trekvista/booking/models/trek_models"
)

// TrekController serves the read-only trek catalog.
type TrekController struct {
	db *pgxpool.Pool
}

func NewTrekController(db *pgxpool.Pool) *TrekController {
	return &TrekController{db: db}
}

// ListTreks handles GET /v1/treks.
func (tc *TrekController) ListTreks(c *gin.Context) {
	treks, err := trek_models.ListActiveTreks(c.Request.Context(), tc.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"treks": treks})
}

// GetTrek handles GET /v1/treks/:slug.
func (tc *TrekController) GetTrek(c *gin.Context) {
	trek, err := trek_models.GetTrekBySlug(c.Request.Context(), tc.db, c.Param("slug"))
	if err != nil {
		if errors.Is(err, trek_models.ErrTrekNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "trek not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trek": trek})
}
