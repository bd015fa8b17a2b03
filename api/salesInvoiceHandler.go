package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/consumables_backend/models"
)

func createInvoiceFromOrder(c *gin.Context) {
	var input models.NewInvoiceFromOrder
	if !bindJSON(c, &input) {
		return
	}
	invoice, err := models.CreateInvoiceFromOrder(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err, "createInvoiceFromOrder", input)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func createAdHocInvoice(c *gin.Context) {
	var input models.NewAdHocInvoice
	if !bindJSON(c, &input) {
		return
	}
	invoice, err := models.CreateAdHocInvoice(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err, "createAdHocInvoice", input)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func getInvoice(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	invoice, err := models.GetInvoice(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getInvoice", id)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func listInvoices(c *gin.Context) {
	var filter models.InvoiceFilter
	var ok bool
	if filter.StoreId, ok = queryInt(c, "store_id"); !ok {
		return
	}
	if filter.SalesOrderId, ok = queryInt(c, "sales_order_id"); !ok {
		return
	}
	if filter.Status, ok = statusQuery(c, "status", models.InvoiceStatus.IsValid); !ok {
		return
	}
	if filter.PaymentStatus, ok = statusQuery(c, "payment_status", models.PaymentStatus.IsValid); !ok {
		return
	}
	invoices, err := models.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err, "listInvoices", filter)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func cancelInvoice(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	reason, ok := optionalReason(c)
	if !ok {
		return
	}
	invoice, err := models.CancelInvoice(c.Request.Context(), id, reason)
	if err != nil {
		writeError(c, err, "cancelInvoice", id)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func deleteInvoice(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	invoice, err := models.DeleteInvoice(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "deleteInvoice", id)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func dispatchInvoice(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	invoice, err := models.DispatchInvoice(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "dispatchInvoice", id)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

type billingStatusBody struct {
	BillingStatus models.BillingStatus `json:"billing_status" binding:"required"`
}

func updateInvoiceBillingStatus(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var body billingStatusBody
	if !bindJSON(c, &body) {
		return
	}
	invoice, err := models.UpdateInvoiceBillingStatus(c.Request.Context(), id, body.BillingStatus)
	if err != nil {
		writeError(c, err, "updateInvoiceBillingStatus", body)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func updateInvoicePaymentStatus(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewInvoicePaymentStatus
	if !bindJSON(c, &input) {
		return
	}
	invoice, err := models.UpdateInvoicePaymentStatus(c.Request.Context(), id, &input)
	if err != nil {
		writeError(c, err, "updateInvoicePaymentStatus", input)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func recordInvoicePayment(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewInvoicePayment
	if !bindJSON(c, &input) {
		return
	}
	result, err := models.RecordInvoicePayment(c.Request.Context(), id, &input)
	if err != nil {
		writeError(c, err, "recordInvoicePayment", input)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func getInvoicePayments(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	payments, err := models.GetInvoicePaymentHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getInvoicePayments", id)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func getInvoicePaymentSummary(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	summary, err := models.GetInvoicePaymentSummary(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getInvoicePaymentSummary", id)
		return
	}
	c.JSON(http.StatusOK, summary)
}
