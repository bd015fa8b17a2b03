package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/consumables_backend/models"
)

func createProduct(c *gin.Context) {
	var input models.NewProduct
	if !bindJSON(c, &input) {
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err, "createProduct", input)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func getProduct(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getProduct", id)
		return
	}
	c.JSON(http.StatusOK, product)
}

func listProducts(c *gin.Context) {
	var name *string
	if v := c.Query("name"); v != "" {
		name = &v
	}
	products, err := models.ListProducts(c.Request.Context(), name)
	if err != nil {
		writeError(c, err, "listProducts", nil)
		return
	}
	c.JSON(http.StatusOK, products)
}

type activeBody struct {
	IsActive bool `json:"is_active"`
}

func toggleActiveProduct(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var body activeBody
	if !bindJSON(c, &body) {
		return
	}
	product, err := models.ToggleActiveProduct(c.Request.Context(), id, body.IsActive)
	if err != nil {
		writeError(c, err, "toggleActiveProduct", body)
		return
	}
	c.JSON(http.StatusOK, product)
}

// consumeFinishedGoods withdraws finished goods outside an invoice (samples, damage).
func consumeFinishedGoods(c *gin.Context) {
	var input models.NewFinishedGoodsConsumption
	if !bindJSON(c, &input) {
		return
	}
	allocations, err := models.ConsumeFinishedGoods(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err, "consumeFinishedGoods", input)
		return
	}
	c.JSON(http.StatusOK, allocations)
}

func createRawMaterial(c *gin.Context) {
	var input models.NewRawMaterial
	if !bindJSON(c, &input) {
		return
	}
	material, err := models.CreateRawMaterial(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err, "createRawMaterial", input)
		return
	}
	c.JSON(http.StatusCreated, material)
}

func getRawMaterial(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	material, err := models.GetRawMaterial(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getRawMaterial", id)
		return
	}
	c.JSON(http.StatusOK, material)
}

func listRawMaterials(c *gin.Context) {
	materials, err := models.ListRawMaterials(c.Request.Context(), queryBool(c, "below_reorder"))
	if err != nil {
		writeError(c, err, "listRawMaterials", nil)
		return
	}
	c.JSON(http.StatusOK, materials)
}

func adjustRawMaterialStock(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewStockAdjustment
	if !bindJSON(c, &input) {
		return
	}
	material, err := models.AdjustRawMaterialStock(c.Request.Context(), id, &input)
	if err != nil {
		writeError(c, err, "adjustRawMaterialStock", input)
		return
	}
	c.JSON(http.StatusOK, material)
}

func listStockMovements(c *gin.Context) {
	itemType := models.StockItemType(c.Query("item_type"))
	if itemType != models.StockItemTypeRawMaterial && itemType != models.StockItemTypeProduct {
		badRequest(c, "item_type", "must be raw_material or product")
		return
	}
	itemId, ok := queryInt(c, "item_id")
	if !ok {
		return
	}
	if itemId == nil {
		badRequest(c, "item_id", "is required")
		return
	}
	movements, err := models.ListStockMovements(c.Request.Context(), itemType, *itemId)
	if err != nil {
		writeError(c, err, "listStockMovements", nil)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func createStore(c *gin.Context) {
	var input models.NewStore
	if !bindJSON(c, &input) {
		return
	}
	store, err := models.CreateStore(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err, "createStore", input)
		return
	}
	c.JSON(http.StatusCreated, store)
}

func getStore(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	store, err := models.GetStore(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getStore", id)
		return
	}
	c.JSON(http.StatusOK, store)
}

func createVendor(c *gin.Context) {
	var input models.NewVendor
	if !bindJSON(c, &input) {
		return
	}
	vendor, err := models.CreateVendor(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err, "createVendor", input)
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func getVendor(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	vendor, err := models.GetVendor(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "getVendor", id)
		return
	}
	c.JSON(http.StatusOK, vendor)
}

func listTransactionNumberSeries(c *gin.Context) {
	series, err := models.ListTransactionNumberSeries(c.Request.Context())
	if err != nil {
		writeError(c, err, "listTransactionNumberSeries", nil)
		return
	}
	c.JSON(http.StatusOK, series)
}

func updateTransactionNumberPrefix(c *gin.Context) {
	var input models.NewTransactionNumberSeries
	if !bindJSON(c, &input) {
		return
	}
	series, err := models.UpdateTransactionNumberPrefix(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err, "updateTransactionNumberPrefix", input)
		return
	}
	c.JSON(http.StatusOK, series)
}
