package web

import (
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) AddNode(c fiber.Ctx) error {
	var req AddNodeRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.workflowService.AddNode(c.Context(), c.Params("id"), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) UpdateNode(c fiber.Ctx) error {
	var req UpdateNodeRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.workflowService.UpdateNode(c.Context(), c.Params("id"), c.Params("nodeId"), req.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) RemoveNode(c fiber.Ctx) error {
	err := h.workflowService.RemoveNode(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) UpdateNodeStatus(c fiber.Ctx) error {
	var req UpdateNodeStatusRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.workflowService.UpdateNodeStatus(c.Context(), c.Params("id"), c.Params("nodeId"), req.Status)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) AddEdge(c fiber.Ctx) error {
	var req AddEdgeRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	edge, err := h.workflowService.AddEdge(c.Context(), c.Params("id"), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(edge)
}

func (h *APIHandlers) UpdateEdge(c fiber.Ctx) error {
	var req UpdateEdgeRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	edge, err := h.workflowService.UpdateEdge(c.Context(), c.Params("id"), c.Params("edgeId"), req.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(edge)
}

func (h *APIHandlers) RemoveEdge(c fiber.Ctx) error {
	err := h.workflowService.RemoveEdge(c.Context(), c.Params("id"), c.Params("edgeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DecideEdge(c fiber.Ctx) error {
	var req DecisionRequest
	if err := h.bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	edge, err := h.workflowService.DecideEdge(
		c.Context(),
		c.Params("id"),
		c.Params("edgeId"),
		req.Decision,
		req.ApproverID,
		req.Comments,
	)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(edge)
}

func (h *APIHandlers) IsTraversable(c fiber.Ctx) error {
	edgeID := c.Params("edgeId")

	traversable, err := h.workflowService.IsTraversable(c.Context(), c.Params("id"), edgeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TraversableResponse{EdgeID: edgeID, Traversable: traversable})
}
