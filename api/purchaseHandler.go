package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/consumables_backend/models"
)

func createPurchaseRequest(c *gin.Context) {
	var input models.NewPurchaseRequest
	if !bindJSON(c, &input) {
		return
	}
	request, err := models.CreatePurchaseRequest(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err, "createPurchaseRequest", input)
		return
	}
	c.JSON(http.StatusCreated, request)
}

func updatePurchaseRequest(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewPurchaseRequest
	if !bindJSON(c, &input) {
		return
	}
	request, err := models.UpdatePurchaseRequest(c.Request.Context(), id, &input)
	if err != nil {
		writeError(c, err, "updatePurchaseRequest", input)
		return
	}
	c.JSON(http.StatusOK, request)
}

func getPurchaseRequest(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	request, err := models.GetPurchaseRequest(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getPurchaseRequest", id)
		return
	}
	c.JSON(http.StatusOK, request)
}

func listPurchaseRequests(c *gin.Context) {
	vendorId, ok := queryInt(c, "vendor_id")
	if !ok {
		return
	}
	status, ok := statusQuery(c, "status", models.PurchaseRequestStatus.IsValid)
	if !ok {
		return
	}
	requests, err := models.ListPurchaseRequests(c.Request.Context(), vendorId, status)
	if err != nil {
		writeError(c, err, "listPurchaseRequests", nil)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// purchaseRequestTransition adapts Submit/Cancel/Close to a handler.
func purchaseRequestTransition(name string, fn func(*gin.Context, int) (*models.PurchaseRequest, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		request, err := fn(c, id)
		if err != nil {
			writeError(c, err, name, id)
			return
		}
		c.JSON(http.StatusOK, request)
	}
}

var (
	submitPurchaseRequest = purchaseRequestTransition("submitPurchaseRequest", func(c *gin.Context, id int) (*models.PurchaseRequest, error) {
		return models.SubmitPurchaseRequest(c.Request.Context(), id)
	})
	cancelPurchaseRequest = purchaseRequestTransition("cancelPurchaseRequest", func(c *gin.Context, id int) (*models.PurchaseRequest, error) {
		return models.CancelPurchaseRequest(c.Request.Context(), id)
	})
	closePurchaseRequest = purchaseRequestTransition("closePurchaseRequest", func(c *gin.Context, id int) (*models.PurchaseRequest, error) {
		return models.ClosePurchaseRequest(c.Request.Context(), id)
	})
)

func receivePurchase(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewPurchaseReceipt
	if !bindJSON(c, &input) {
		return
	}
	receipt, err := models.ReceivePurchase(c.Request.Context(), id, &input)
	if err != nil {
		writeError(c, err, "receivePurchase", input)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func listPurchaseReceipts(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	receipts, err := models.ListPurchaseReceipts(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "listPurchaseReceipts", id)
		return
	}
	c.JSON(http.StatusOK, receipts)
}

func getPurchaseReceipt(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	receipt, err := models.GetPurchaseReceipt(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getPurchaseReceipt", id)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func getVendorBill(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	bill, err := models.GetVendorBill(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getVendorBill", id)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func recordVendorBillPayment(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewVendorBillPayment
	if !bindJSON(c, &input) {
		return
	}
	bill, err := models.RecordVendorBillPayment(c.Request.Context(), id, &input)
	if err != nil {
		writeError(c, err, "recordVendorBillPayment", input)
		return
	}
	c.JSON(http.StatusCreated, bill)
}

// listDueVendorBills defaults to bills already due now.
func listDueVendorBills(c *gin.Context) {
	asOf, ok := queryDate(c, "as_of", time.Now().UTC())
	if !ok {
		return
	}
	bills, err := models.ListDueVendorBills(c.Request.Context(), asOf)
	if err != nil {
		writeError(c, err, "listDueVendorBills", nil)
		return
	}
	c.JSON(http.StatusOK, bills)
}
