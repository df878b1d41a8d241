package voucher_controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trekvista/booking/controllers/reservation_controller"
	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/models/voucher_models"
	"github.com/trekvista/booking/reservation"
	"github.com/trekvista/booking/utils"
)

// VoucherController exposes admin voucher management and the public
// discount preview. Previews never consume a use; redemption only happens
// inside the reservation transaction.
type VoucherController struct {
	db          *pgxpool.Pool
	coordinator *reservation.Coordinator
}

func NewVoucherController(db *pgxpool.Pool, coordinator *reservation.Coordinator) *VoucherController {
	return &VoucherController{db: db, coordinator: coordinator}
}

type createVoucherRequest struct {
	Code            string    `json:"code" binding:"required"`
	DiscountPercent int       `json:"discount_percent" binding:"required"`
	MinimumAmount   *int64    `json:"minimum_amount"`
	MaximumDiscount *int64    `json:"maximum_discount"`
	ValidUntil      time.Time `json:"valid_until" binding:"required"`
	MaxUses         int       `json:"max_uses" binding:"required"`
	UserID          *string   `json:"user_id"`
}

// CreateVoucher handles POST /v1/admin/vouchers.
func (vc *VoucherController) CreateVoucher(c *gin.Context) {
	var req createVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": err.Error()})
		return
	}

	voucher, err := voucher_models.NewVoucher(req.Code, req.DiscountPercent, req.ValidUntil, req.MaxUses)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": err.Error()})
		return
	}
	voucher.MinimumAmount = req.MinimumAmount
	voucher.MaximumDiscount = req.MaximumDiscount

	if req.UserID != nil {
		userID, err := uuid.Parse(*req.UserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": "invalid user_id"})
			return
		}
		voucher.UserID = &userID
	}

	created, err := voucher_models.CreateVoucher(c.Request.Context(), vc.db, voucher)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to create voucher %q: %v", req.Code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"voucher": created})
}

// ListVouchers handles GET /v1/admin/vouchers.
func (vc *VoucherController) ListVouchers(c *gin.Context) {
	vouchers, err := voucher_models.ListVouchers(c.Request.Context(), vc.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"vouchers": vouchers})
}

// DeactivateVoucher handles DELETE /v1/admin/vouchers/:id. The voucher is
// disabled, not deleted, so its redemption history survives.
func (vc *VoucherController) DeactivateVoucher(c *gin.Context) {
	voucherID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": "invalid voucher id"})
		return
	}

	if err := voucher_models.DeactivateVoucher(c.Request.Context(), vc.db, voucherID); err != nil {
		if errors.Is(err, voucher_models.ErrVoucherNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "voucher not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "voucher deactivated"})
}

type previewVoucherRequest struct {
	Code         string `json:"code" binding:"required"`
	TrekSlug     string `json:"trek_slug" binding:"required"`
	Participants int    `json:"participants" binding:"required"`
}

// PreviewVoucher handles POST /v1/vouchers/preview, quoting the discount a
// voucher would grant without consuming a use.
func (vc *VoucherController) PreviewVoucher(c *gin.Context) {
	user, err := utils.GetUserIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req previewVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": err.Error()})
		return
	}

	quote, err := vc.coordinator.PreviewVoucher(c.Request.Context(), req.Code, user, req.TrekSlug, req.Participants)
	if err != nil {
		reservation_controller.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quote": quote})
}
