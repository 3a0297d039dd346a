package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"equipment_usage_tracker/app"
	"equipment_usage_tracker/lifecycle"
	"equipment_usage_tracker/models"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const (
	qrImageSize    = 256
	qrImageMaxSize = 1024
)

type EquipmentController struct{ *Srv }

func NewEquipmentController(s *Srv) *EquipmentController { return &EquipmentController{Srv: s} }

type equipmentReq struct {
	Description string  `json:"description"`
	Brand       string  `json:"brand"`
	IntakeDate  *string `json:"intakeDate"`
	ScanCode    *string `json:"scanCode"`
	Status      string  `json:"status"`
}

func (r equipmentReq) input() (lifecycle.EquipmentInput, error) {
	intake, err := optTime(r.IntakeDate)
	if err != nil {
		return lifecycle.EquipmentInput{}, err
	}
	return lifecycle.EquipmentInput{
		Description: r.Description,
		Brand:       r.Brand,
		IntakeDate:  intake,
		ScanCode:    optString(r.ScanCode),
		Status:      models.EquipmentStatus(r.Status),
	}, nil
}

// GET /api/equipment?q=&status=
func (ec *EquipmentController) List(c *gin.Context) {
	views, err := ec.Lifecycle.ListEquipment(c.Request.Context(), c.Query("q"), c.Query("status"))
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": views})
}

func (ec *EquipmentController) Get(c *gin.Context) {
	v, err := ec.Lifecycle.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (ec *EquipmentController) Create(c *gin.Context) {
	var req equipmentReq
	if err := bindJSON(c, &req, false); err != nil {
		app.AbortWithError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	it, err := ec.Lifecycle.CreateEquipment(c.Request.Context(), in)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

func (ec *EquipmentController) Update(c *gin.Context) {
	var req equipmentReq
	if err := bindJSON(c, &req, false); err != nil {
		app.AbortWithError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	it, err := ec.Lifecycle.UpdateEquipment(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// PATCH /api/equipment/:id/status
func (ec *EquipmentController) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if err := bindJSON(c, &req, false); err != nil {
		app.AbortWithError(c, err)
		return
	}
	actor := req.Actor
	if actor == "" {
		actor = app.Actor(c, "")
	}
	it, err := ec.Lifecycle.UpdateStatus(c.Request.Context(), c.Param("id"), lifecycle.StatusUpdate{
		Status: models.EquipmentStatus(req.Status),
		Actor:  actor,
		Reason: req.Reason,
	})
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (ec *EquipmentController) Delete(c *gin.Context) {
	if err := ec.Lifecycle.DeleteEquipment(c.Request.Context(), c.Param("id")); err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/equipment/:id/state
func (ec *EquipmentController) State(c *gin.Context) {
	id := c.Param("id")
	state, err := ec.Lifecycle.DerivedState(c.Request.Context(), id)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"equipmentId": id, "state": state})
}

// GET /api/equipment/:id/status-log?limit=
func (ec *EquipmentController) StatusLog(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	log, err := ec.Lifecycle.StatusLog(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": log})
}

// GET /api/equipment/:id/qrcode?size=
// The tag encodes the scan code when the unit has one, otherwise its id, so
// scanning it into the search box always finds the unit.
func (ec *EquipmentController) QRCode(c *gin.Context) {
	it, err := ec.Lifecycle.GetEquipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	size, err := queryInt(c, "size")
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	png, err := TagPNG(it, size)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", it.ID+".png"))
	c.Header("Content-Length", strconv.Itoa(len(png)))
	c.Data(http.StatusOK, "image/png", png)
}

// TagPayload is what the printed tag of a unit encodes.
func TagPayload(it *models.Equipment) string {
	if it.ScanCode != nil && *it.ScanCode != "" {
		return *it.ScanCode
	}
	return it.ID
}

func TagPNG(it *models.Equipment, size int) ([]byte, error) {
	if size <= 0 {
		size = qrImageSize
	}
	if size > qrImageMaxSize {
		size = qrImageMaxSize
	}
	png, err := qrcode.Encode(TagPayload(it), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
