package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/consumables_backend/middlewares"
	"github.com/sirupsen/logrus"
)

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	// production needs an explicit allowlist; everything else allows all origins
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		cfg.AllowOrigins = splitAndTrim(allowedOrigins)
		if len(cfg.AllowOrigins) == 0 {
			cfg.AllowOrigins = []string{}
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	cfg.AddExposeHeaders("Content-Length", "x-correlation-id")
	cfg.AllowCredentials = !cfg.AllowAllOrigins
	return cfg
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewRouter builds the HTTP surface. limiter may be nil.
func NewRouter(logger *logrus.Logger, limiter *middlewares.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(cors.New(corsConfig()))
	if limiter != nil {
		r.Use(limiter.Middleware())
	}
	r.Use(middlewares.ErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/pubsub/workflow", workflowPushHandler)

	v := r.Group("/")
	v.Use(middlewares.AuthMiddleware())
	admin := middlewares.RequireAdmin()

	v.POST("/orders", traced("CreateSalesOrder", createSalesOrder))
	v.GET("/orders", traced("ListSalesOrders", listSalesOrders))
	v.GET("/orders/:id", traced("GetSalesOrder", getSalesOrder))
	v.PUT("/orders/:id", traced("UpdateSalesOrder", updateSalesOrder))
	v.DELETE("/orders/:id", traced("DeleteSalesOrder", deleteSalesOrder))
	v.POST("/orders/:id/submit", traced("SubmitSalesOrder", submitSalesOrder))
	v.POST("/orders/:id/approve", traced("ApproveSalesOrder", approveSalesOrder))
	v.POST("/orders/:id/cancel", traced("CancelSalesOrder", cancelSalesOrder))

	v.POST("/invoices", traced("CreateInvoiceFromOrder", createInvoiceFromOrder))
	v.POST("/invoices/adhoc", traced("CreateAdHocInvoice", createAdHocInvoice))
	v.GET("/invoices", traced("ListInvoices", listInvoices))
	v.GET("/invoices/:id", traced("GetInvoice", getInvoice))
	v.DELETE("/invoices/:id", admin, traced("DeleteInvoice", deleteInvoice))
	v.POST("/invoices/:id/cancel", traced("CancelInvoice", cancelInvoice))
	v.POST("/invoices/:id/dispatch", traced("DispatchInvoice", dispatchInvoice))
	v.PUT("/invoices/:id/billing-status", traced("UpdateInvoiceBillingStatus", updateInvoiceBillingStatus))
	v.PUT("/invoices/:id/payment-status", traced("UpdateInvoicePaymentStatus", updateInvoicePaymentStatus))
	v.POST("/invoices/:id/payments", traced("RecordInvoicePayment", recordInvoicePayment))
	v.GET("/invoices/:id/payments", traced("GetInvoicePaymentHistory", getInvoicePayments))
	v.GET("/invoices/:id/payment-summary", traced("GetInvoicePaymentSummary", getInvoicePaymentSummary))

	v.POST("/production-orders", traced("CreateProductionOrder", createProductionOrder))
	v.GET("/production-orders", traced("ListProductionOrders", listProductionOrders))
	v.GET("/production-orders/:id", traced("GetProductionOrder", getProductionOrder))
	v.POST("/production-orders/:id/start", traced("StartProductionOrder", startProductionOrder))
	v.POST("/production-orders/:id/complete", traced("CompleteProductionOrder", completeProductionOrder))
	v.POST("/production-orders/:id/cancel", traced("CancelProductionOrder", cancelProductionOrder))
	v.GET("/production-suggestions", traced("GetProductionSuggestions", getProductionSuggestions))

	v.GET("/recipes/:productId", traced("GetRecipe", getRecipe))
	v.PUT("/recipes/:productId", traced("SetRecipe", setRecipe))
	v.GET("/recipes/:productId/requirements", traced("GetRequiredMaterials", getRequiredMaterials))

	v.GET("/batches", traced("ListBatches", listBatches))
	v.GET("/batches/export.xlsx", traced("ExportBatchTraceability", exportBatchTraceability))
	v.GET("/batches/:id", traced("GetBatch", getBatch))
	v.PUT("/batches/:id/status", traced("UpdateBatchStatus", updateBatchStatus))

	v.POST("/products", traced("CreateProduct", createProduct))
	v.GET("/products", traced("ListProducts", listProducts))
	v.GET("/products/:id", traced("GetProduct", getProduct))
	v.PUT("/products/:id/active", traced("ToggleActiveProduct", toggleActiveProduct))
	v.POST("/finished-goods/consume", traced("ConsumeFinishedGoods", consumeFinishedGoods))

	v.POST("/raw-materials", traced("CreateRawMaterial", createRawMaterial))
	v.GET("/raw-materials", traced("ListRawMaterials", listRawMaterials))
	v.GET("/raw-materials/:id", traced("GetRawMaterial", getRawMaterial))
	v.POST("/raw-materials/:id/adjust", traced("AdjustRawMaterialStock", adjustRawMaterialStock))
	v.GET("/stock-movements", traced("ListStockMovements", listStockMovements))

	v.POST("/stores", traced("CreateStore", createStore))
	v.GET("/stores/:id", traced("GetStore", getStore))
	v.POST("/vendors", traced("CreateVendor", createVendor))
	v.GET("/vendors/:id", traced("GetVendor", getVendor))

	v.POST("/purchase-requests", traced("CreatePurchaseRequest", createPurchaseRequest))
	v.GET("/purchase-requests", traced("ListPurchaseRequests", listPurchaseRequests))
	v.GET("/purchase-requests/:id", traced("GetPurchaseRequest", getPurchaseRequest))
	v.PUT("/purchase-requests/:id", traced("UpdatePurchaseRequest", updatePurchaseRequest))
	v.POST("/purchase-requests/:id/submit", traced("SubmitPurchaseRequest", submitPurchaseRequest))
	v.POST("/purchase-requests/:id/cancel", traced("CancelPurchaseRequest", cancelPurchaseRequest))
	v.POST("/purchase-requests/:id/close", traced("ClosePurchaseRequest", closePurchaseRequest))
	v.POST("/purchase-requests/:id/receipts", traced("ReceivePurchase", receivePurchase))
	v.GET("/purchase-requests/:id/receipts", traced("ListPurchaseReceipts", listPurchaseReceipts))
	v.GET("/purchase-receipts/:id", traced("GetPurchaseReceipt", getPurchaseReceipt))
	v.GET("/vendor-bills/due", traced("ListDueVendorBills", listDueVendorBills))
	v.GET("/vendor-bills/:id", traced("GetVendorBill", getVendorBill))
	v.POST("/vendor-bills/:id/payments", traced("RecordVendorBillPayment", recordVendorBillPayment))

	v.GET("/notifications", traced("ListNotifications", listNotifications))
	v.POST("/notifications/:id/read", traced("MarkNotificationRead", markNotificationRead))

	ops := v.Group("/internal/ops", admin)
	ops.GET("/number-series", listTransactionNumberSeries)
	ops.PUT("/number-series", updateTransactionNumberPrefix)
	ops.GET("/outbox/dead", listDeadOutbox)
	ops.GET("/outbox/:referenceType/:referenceId", getOutboxStatus)
	ops.POST("/outbox-records/:id/requeue", requeueOutboxRecord)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
