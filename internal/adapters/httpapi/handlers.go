package httpapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"agromix/internal/core"
	"agromix/internal/export"
	"agromix/pkg/domain"
)

type calculationRequest struct {
	Title string                  `json:"title"`
	Input domain.CalculationInput `json:"input"`
}

func (h *handler) compute(c *gin.Context) {
	var input domain.CalculationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.svc.Compute(input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) catalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Catalog(c.Request.Context(), ownerID(c)))
}

func (h *handler) listCalculations(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListCalculations(c.Request.Context(), ownerID(c)))
}

func (h *handler) saveCalculation(c *gin.Context) {
	var req calculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := h.svc.SaveCalculation(c.Request.Context(), ownerID(c), req.Title, req.Input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *handler) getCalculation(c *gin.Context) {
	calc, ok := h.svc.FindCalculation(c.Request.Context(), ownerID(c), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "calculation not found"})
		return
	}
	c.JSON(http.StatusOK, calc)
}

func (h *handler) deleteCalculation(c *gin.Context) {
	h.noContent(c, h.svc.DeleteCalculation(c.Request.Context(), ownerID(c), c.Param("id")))
}

func (h *handler) exportCalculation(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		badRequest(c, err)
		return
	}
	calc, ok := h.svc.FindCalculation(c.Request.Context(), ownerID(c), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "calculation not found"})
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, calc, format); err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(calc, format)))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (h *handler) listOperations(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListOperations(c.Request.Context(), ownerID(c)))
}

func (h *handler) saveOperation(c *gin.Context) {
	var op domain.Operation
	if err := c.ShouldBindJSON(&op); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := h.svc.SaveOperation(c.Request.Context(), ownerID(c), op)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *handler) deleteOperation(c *gin.Context) {
	h.noContent(c, h.svc.DeleteOperation(c.Request.Context(), ownerID(c), c.Param("id")))
}

func (h *handler) listRecipes(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListRecipes(c.Request.Context(), ownerID(c)))
}

func (h *handler) saveRecipe(c *gin.Context) {
	var recipe domain.Recipe
	if err := c.ShouldBindJSON(&recipe); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := h.svc.SaveRecipe(c.Request.Context(), ownerID(c), recipe)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *handler) updateRecipe(c *gin.Context) {
	var patch core.RecipePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	h.noContent(c, h.svc.UpdateRecipe(c.Request.Context(), ownerID(c), c.Param("id"), patch))
}

func (h *handler) deleteRecipe(c *gin.Context) {
	h.noContent(c, h.svc.DeleteRecipe(c.Request.Context(), ownerID(c), c.Param("id")))
}

func (h *handler) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListCustomProducts(c.Request.Context(), ownerID(c)))
}

func (h *handler) saveProduct(c *gin.Context) {
	var product domain.CustomProduct
	if err := c.ShouldBindJSON(&product); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := h.svc.SaveCustomProduct(c.Request.Context(), ownerID(c), product)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *handler) updateProduct(c *gin.Context) {
	var patch core.CustomProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	h.noContent(c, h.svc.UpdateCustomProduct(c.Request.Context(), ownerID(c), c.Param("id"), patch))
}

func (h *handler) deleteProduct(c *gin.Context) {
	h.noContent(c, h.svc.DeleteCustomProduct(c.Request.Context(), ownerID(c), c.Param("id")))
}

func (h *handler) noContent(c *gin.Context, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
