package controllers

import (
	"net/http"
	"strings"

	"equipment_usage_tracker/app"
	"equipment_usage_tracker/db"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type MaintenanceController struct{ *Srv }

func NewMaintenanceController(s *Srv) *MaintenanceController { return &MaintenanceController{Srv: s} }

type maintenanceReq struct {
	EquipmentID string  `json:"equipmentId"`
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
	PerformedAt *string `json:"performedAt"`
	PerformedBy string  `json:"performedBy"`
}

func (r maintenanceReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EquipmentID, validation.Required),
		validation.Field(&r.Description, validation.Required),
		validation.Field(&r.Cost, validation.Min(0.0)),
	)
}

// input validates the request and checks that the unit exists.
func (mc *MaintenanceController) input(c *gin.Context) (db.MaintenanceInput, error) {
	var req maintenanceReq
	if err := bindJSON(c, &req, false); err != nil {
		return db.MaintenanceInput{}, err
	}
	req.Description = strings.TrimSpace(req.Description)
	if err := db.NewValidationError(req.Validate()); err != nil {
		return db.MaintenanceInput{}, err
	}
	equipmentID, err := db.ParseID("equipment id", req.EquipmentID)
	if err != nil {
		return db.MaintenanceInput{}, err
	}
	if _, err := mc.Repo.FindEquipmentByID(c.Request.Context(), equipmentID); err != nil {
		return db.MaintenanceInput{}, err
	}
	at, err := optTime(req.PerformedAt)
	if err != nil {
		return db.MaintenanceInput{}, err
	}
	in := db.MaintenanceInput{
		EquipmentID: equipmentID,
		Description: req.Description,
		Cost:        req.Cost,
		PerformedBy: strings.TrimSpace(req.PerformedBy),
		PerformedAt: db.Now(),
	}
	if at != nil {
		in.PerformedAt = *at
	}
	return in, nil
}

// GET /api/maintenance?equipmentId=
func (mc *MaintenanceController) List(c *gin.Context) {
	equipmentID := c.Query("equipmentId")
	if equipmentID != "" {
		id, err := db.ParseID("equipment id", equipmentID)
		if err != nil {
			app.AbortWithError(c, err)
			return
		}
		equipmentID = id
	}
	items, err := mc.Repo.ListMaintenance(c.Request.Context(), equipmentID)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

func (mc *MaintenanceController) Get(c *gin.Context) {
	id, err := db.ParseID("maintenance id", c.Param("id"))
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	m, err := mc.Repo.FindMaintenanceByID(c.Request.Context(), id)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (mc *MaintenanceController) Create(c *gin.Context) {
	in, err := mc.input(c)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	m, err := mc.Repo.CreateMaintenance(c.Request.Context(), in)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (mc *MaintenanceController) Update(c *gin.Context) {
	id, err := db.ParseID("maintenance id", c.Param("id"))
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	in, err := mc.input(c)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	if err := mc.Repo.UpdateMaintenance(c.Request.Context(), id, in); err != nil {
		app.AbortWithError(c, err)
		return
	}
	m, err := mc.Repo.FindMaintenanceByID(c.Request.Context(), id)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (mc *MaintenanceController) Delete(c *gin.Context) {
	id, err := db.ParseID("maintenance id", c.Param("id"))
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	if err := mc.Repo.DeleteMaintenance(c.Request.Context(), id); err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
