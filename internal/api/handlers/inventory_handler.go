package handlers

import (
	"net/http"

	"github.com/andresuchdata/autoreorder/internal/service"
	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	inventory *service.InventoryService
	cycles    *service.CycleService
}

func NewInventoryHandler(inventory *service.InventoryService, cycles *service.CycleService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, cycles: cycles}
}

func (h *InventoryHandler) ListMaterials(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"materials": h.cycles.Materials()})
}

func (h *InventoryHandler) GetSummary(c *gin.Context) {
	summary, err := h.inventory.Summary(c.Request.Context(), c.Param("material"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *InventoryHandler) GetPeriods(c *gin.Context) {
	periods, err := h.inventory.Periods(c.Param("material"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"material_id": c.Param("material"), "periods": periods})
}

// GetAlertState returns the persisted alert for ?material=. An absent state
// is reported as null.
func (h *InventoryHandler) GetAlertState(c *gin.Context) {
	material := c.Query("material")
	if material == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "material is required"})
		return
	}
	state, err := h.inventory.AlertState(c.Request.Context(), material)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"material_id": material, "state": state})
}
