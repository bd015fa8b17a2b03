package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/consumables_backend/models"
)

func createSalesOrder(c *gin.Context) {
	var input models.NewSalesOrder
	if !bindJSON(c, &input) {
		return
	}
	order, err := models.CreateSalesOrder(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err, "createSalesOrder", input)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func updateSalesOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewSalesOrder
	if !bindJSON(c, &input) {
		return
	}
	order, err := models.UpdateSalesOrder(c.Request.Context(), id, &input)
	if err != nil {
		writeError(c, err, "updateSalesOrder", input)
		return
	}
	c.JSON(http.StatusOK, order)
}

func getSalesOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := models.GetSalesOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getSalesOrder", id)
		return
	}
	c.JSON(http.StatusOK, order)
}

func listSalesOrders(c *gin.Context) {
	storeId, ok := queryInt(c, "store_id")
	if !ok {
		return
	}
	status, ok := statusQuery(c, "status", models.SalesOrderStatus.IsValid)
	if !ok {
		return
	}
	orders, err := models.ListSalesOrders(c.Request.Context(), storeId, status)
	if err != nil {
		writeError(c, err, "listSalesOrders", nil)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func submitSalesOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := models.SubmitSalesOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "submitSalesOrder", id)
		return
	}
	c.JSON(http.StatusOK, order)
}

// approveSalesOrder answers with the order and any stock shortage warnings.
func approveSalesOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	approval, err := models.ApproveSalesOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "approveSalesOrder", id)
		return
	}
	c.JSON(http.StatusOK, approval)
}

func cancelSalesOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := models.CancelSalesOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "cancelSalesOrder", id)
		return
	}
	c.JSON(http.StatusOK, order)
}

func deleteSalesOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := models.DeleteSalesOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "deleteSalesOrder", id)
		return
	}
	c.JSON(http.StatusOK, order)
}
