package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/consumables_backend/models"
	"github.com/mmdatafocus/consumables_backend/models/reports"
	"github.com/shopspring/decimal"
)

func createProductionOrder(c *gin.Context) {
	var input models.NewProductionOrder
	if !bindJSON(c, &input) {
		return
	}
	order, err := models.CreateProductionOrder(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err, "createProductionOrder", input)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func getProductionOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := models.GetProductionOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getProductionOrder", id)
		return
	}
	c.JSON(http.StatusOK, order)
}

func listProductionOrders(c *gin.Context) {
	status, ok := statusQuery(c, "status", models.ProductionOrderStatus.IsValid)
	if !ok {
		return
	}
	productId, ok := queryInt(c, "product_id")
	if !ok {
		return
	}
	orders, err := models.ListProductionOrders(c.Request.Context(), status, productId)
	if err != nil {
		writeError(c, err, "listProductionOrders", nil)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func startProductionOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := models.StartProductionOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "startProductionOrder", id)
		return
	}
	c.JSON(http.StatusOK, order)
}

func completeProductionOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.ProductionCompletion
	if !bindJSON(c, &input) {
		return
	}
	order, err := models.CompleteProductionOrder(c.Request.Context(), id, &input)
	if err != nil {
		writeError(c, err, "completeProductionOrder", input)
		return
	}
	c.JSON(http.StatusOK, order)
}

func cancelProductionOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	reason, ok := optionalReason(c)
	if !ok {
		return
	}
	order, err := models.CancelProductionOrder(c.Request.Context(), id, reason)
	if err != nil {
		writeError(c, err, "cancelProductionOrder", id)
		return
	}
	c.JSON(http.StatusOK, order)
}

func getProductionSuggestions(c *gin.Context) {
	suggestions, err := models.GetProductionSuggestions(c.Request.Context(), queryBool(c, "only_needed"))
	if err != nil {
		writeError(c, err, "getProductionSuggestions", nil)
		return
	}
	c.JSON(http.StatusOK, suggestions)
}

func getRecipe(c *gin.Context) {
	productId, ok := pathId(c, "productId")
	if !ok {
		return
	}
	lines, err := models.GetRecipe(c.Request.Context(), productId)
	if err != nil {
		writeError(c, err, "getRecipe", productId)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func setRecipe(c *gin.Context) {
	productId, ok := pathId(c, "productId")
	if !ok {
		return
	}
	var input []models.NewRecipeLine
	if !bindJSON(c, &input) {
		return
	}
	lines, err := models.SetRecipe(c.Request.Context(), productId, input)
	if err != nil {
		writeError(c, err, "setRecipe", input)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func getRequiredMaterials(c *gin.Context) {
	productId, ok := pathId(c, "productId")
	if !ok {
		return
	}
	quantity, err := decimal.NewFromString(c.Query("quantity"))
	if err != nil {
		badRequest(c, "quantity", "must be a number")
		return
	}
	requirements, err := models.GetRequiredMaterials(c.Request.Context(), productId, quantity)
	if err != nil {
		writeError(c, err, "getRequiredMaterials", productId)
		return
	}
	c.JSON(http.StatusOK, requirements)
}

func getBatch(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	batch, err := models.GetBatch(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getBatch", id)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// listBatches filters by product (consumption order) or, without one, by status.
func listBatches(c *gin.Context) {
	productId, ok := queryInt(c, "product_id")
	if !ok {
		return
	}
	status, ok := statusQuery(c, "status", models.BatchStatus.IsValid)
	if !ok {
		return
	}
	var batches []*models.Batch
	var err error
	switch {
	case productId != nil:
		batches, err = models.ListBatchesByProduct(c.Request.Context(), *productId, status)
	case status != nil:
		batches, err = models.ListBatchesByStatus(c.Request.Context(), *status)
	default:
		badRequest(c, "product_id", "product_id or status is required")
		return
	}
	if err != nil {
		writeError(c, err, "listBatches", nil)
		return
	}
	c.JSON(http.StatusOK, batches)
}

func updateBatchStatus(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewBatchStatus
	if !bindJSON(c, &input) {
		return
	}
	batch, err := models.UpdateBatchStatus(c.Request.Context(), id, &input)
	if err != nil {
		writeError(c, err, "updateBatchStatus", input)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func exportBatchTraceability(c *gin.Context) {
	productId, ok := queryInt(c, "product_id")
	if !ok {
		return
	}
	rows, err := reports.GetBatchTraceabilityReport(c.Request.Context(), productId)
	if err != nil {
		writeError(c, err, "exportBatchTraceability", productId)
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=batches.xlsx")
	c.Status(http.StatusOK)
	if err := reports.WriteBatchTraceabilityExcel(c.Writer, rows); err != nil {
		_ = c.Error(err)
	}
}
