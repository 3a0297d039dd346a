package controllers

import (
	"net/http"
	"strings"

	"equipment_usage_tracker/app"
	"equipment_usage_tracker/lifecycle"

	"github.com/gin-gonic/gin"
)

type UsageController struct{ *Srv }

func NewUsageController(s *Srv) *UsageController { return &UsageController{Srv: s} }

type checkoutReq struct {
	EquipmentID string `json:"equipmentId"`
	RequesterID string `json:"requesterId"`
	// older clients send the requester as userId
	UserID      string `json:"userId"`
	Activity    string `json:"activity"`
	Signature   string `json:"signature"`
	WithdrawnBy string `json:"withdrawnBy"`
	Notes       string `json:"notes"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
}

// POST /api/usage
func (uc *UsageController) Checkout(c *gin.Context) {
	var req checkoutReq
	if err := bindJSON(c, &req, false); err != nil {
		app.AbortWithError(c, err)
		return
	}
	requester := req.RequesterID
	if strings.TrimSpace(requester) == "" {
		requester = req.UserID
	}
	ep, err := uc.Lifecycle.Checkout(c.Request.Context(), lifecycle.CheckoutInput{
		EquipmentID: req.EquipmentID,
		RequesterID: requester,
		Activity:    req.Activity,
		Signature:   req.Signature,
		WithdrawnBy: req.WithdrawnBy,
		Notes:       req.Notes,
		Description: req.Description,
		Brand:       req.Brand,
	})
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ep)
}

// PUT /api/usage/return/:equipmentId  body (optional): {"endTime": "..."}
func (uc *UsageController) Checkin(c *gin.Context) {
	var req struct {
		EndTime *string `json:"endTime"`
	}
	if err := bindJSON(c, &req, true); err != nil {
		app.AbortWithError(c, err)
		return
	}
	if req.EndTime == nil {
		if q := c.Query("endTime"); q != "" {
			req.EndTime = &q
		}
	}
	end, err := optTime(req.EndTime)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	ep, err := uc.Lifecycle.Checkin(c.Request.Context(), c.Param("equipmentId"), end)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ep)
}

// GET /api/usage/all/:equipmentId?limit=
func (uc *UsageController) History(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	eps, err := uc.Lifecycle.History(c.Request.Context(), c.Param("equipmentId"), limit)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": eps})
}

// GET /api/usage/last/:equipmentId
func (uc *UsageController) Last(c *gin.Context) {
	ep, err := uc.Lifecycle.LastEpisode(c.Request.Context(), c.Param("equipmentId"))
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ep)
}

// GET /api/usage?equipmentId=&requesterId=&status=open|returned&limit=
func (uc *UsageController) List(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	eps, err := uc.Lifecycle.ListEpisodes(c.Request.Context(), lifecycle.EpisodeQuery{
		EquipmentID: c.Query("equipmentId"),
		RequesterID: c.Query("requesterId"),
		Status:      c.Query("status"),
		Limit:       limit,
	})
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": eps})
}

func (uc *UsageController) Get(c *gin.Context) {
	ep, err := uc.Lifecycle.GetEpisode(c.Request.Context(), c.Param("id"))
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ep)
}

// PUT /api/usage/:id is an administrative correction of the record.
func (uc *UsageController) Update(c *gin.Context) {
	var req struct {
		EquipmentID string   `json:"equipmentId"`
		RequesterID string   `json:"requesterId"`
		UserID      string   `json:"userId"`
		Activity    string   `json:"activity"`
		StartTime   *string  `json:"startTime"`
		EndTime     *string  `json:"endTime"`
		TotalHours  *float64 `json:"totalHours"`
		Signature   string   `json:"signature"`
		Notes       string   `json:"notes"`
		WithdrawnBy string   `json:"withdrawnBy"`
	}
	if err := bindJSON(c, &req, false); err != nil {
		app.AbortWithError(c, err)
		return
	}
	start, err := optTime(req.StartTime)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	end, err := optTime(req.EndTime)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	in := lifecycle.EpisodeInput{
		EquipmentID: req.EquipmentID,
		RequesterID: req.RequesterID,
		Activity:    req.Activity,
		EndTime:     end,
		Signature:   req.Signature,
		Notes:       req.Notes,
		WithdrawnBy: req.WithdrawnBy,
	}
	if in.RequesterID == "" {
		in.RequesterID = req.UserID
	}
	if start != nil {
		in.StartTime = *start
	}
	if req.TotalHours != nil {
		in.TotalHours = *req.TotalHours
	}
	ep, err := uc.Lifecycle.UpdateEpisode(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ep)
}

func (uc *UsageController) Delete(c *gin.Context) {
	if err := uc.Lifecycle.DeleteEpisode(c.Request.Context(), c.Param("id")); err != nil {
		app.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

