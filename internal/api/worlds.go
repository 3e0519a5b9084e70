package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/annel0/meadow-world/internal/catalog"
	"github.com/annel0/meadow-world/internal/layers"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world"
	"github.com/annel0/meadow-world/internal/world/grid"
	"github.com/gin-gonic/gin"
)

// OccupantView обитатель ячейки в ответах консоли
type OccupantView struct {
	NodeID        uint64             `json:"node_id"`
	ItemID        string             `json:"item_id"`
	EntityID      uint64             `json:"entity_id"`
	Anchor        vec.Vec2           `json:"anchor"`
	Rotation      grid.Rotation      `json:"rotation"`
	Category      grid.Category      `json:"category"`
	PlacementType grid.PlacementType `json:"placement_type"`
	Footprint     []vec.Vec2         `json:"footprint"`
}

func occupantView(l *world.NodeLink) OccupantView {
	return OccupantView{
		NodeID:        uint64(l.ID),
		ItemID:        l.ItemID,
		EntityID:      uint64(l.Entity),
		Anchor:        l.Anchor,
		Rotation:      l.Rotation,
		Category:      l.Category,
		PlacementType: l.PlacementType,
		Footprint:     l.Footprint(),
	}
}

// CellView содержимое ячейки
type CellView struct {
	Layer     int            `json:"layer"`
	Cell      vec.Vec2       `json:"cell"`
	Position  vec.Vec3       `json:"position"`
	Blocked   bool           `json:"blocked"`
	Occupants []OccupantView `json:"occupants"`
}

// SpawnRequest размещение предмета из консоли
type SpawnRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Rotation string `json:"rotation"` // пусто = North
	Category string `json:"category"` // обязательно для placed
	Dropped  bool   `json:"dropped"`
}

// MoveRequest перемещение наблюдателя ко входу
type MoveRequest struct {
	Layer    int    `json:"layer"`
	Entrance string `json:"entrance" binding:"required"`
}

// statusOf переводит ошибку движка в HTTP-статус
func statusOf(err error) int {
	var placement *world.PlacementError
	switch {
	case errors.Is(err, layers.ErrUnknownLayer),
		errors.Is(err, layers.ErrUnknownEntrance),
		errors.Is(err, world.ErrUnknownItem),
		errors.Is(err, world.ErrNotPlaced),
		errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, world.ErrNotAuthoritative):
		return http.StatusForbidden
	case errors.Is(err, world.ErrMissingScene),
		errors.Is(err, world.ErrOutOfBounds),
		errors.Is(err, world.ErrCategoryNotAllowed),
		errors.Is(err, world.ErrInvalidRotation):
		return http.StatusUnprocessableEntity
	case errors.As(err, &placement),
		errors.Is(err, layers.ErrPlayersOnLayer):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(ctx *gin.Context, err error) {
	ctx.JSON(statusOf(err), GenericResponse{Message: err.Error()})
}

func (c *Console) layerParam(ctx *gin.Context) (*world.World, bool) {
	layer, err := strconv.Atoi(ctx.Param("layer"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный номер слоя"})
		return nil, false
	}
	w, ok := c.manager.GetWorld(layer)
	if !ok {
		ctx.JSON(http.StatusNotFound, GenericResponse{Message: "Слой не загружен"})
		return nil, false
	}
	return w, true
}

func (c *Console) handleLayers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Загруженные миры",
		Data:    c.manager.Snapshot(),
	})
}

func (c *Console) handleCell(ctx *gin.Context) {
	w, ok := c.layerParam(ctx)
	if !ok {
		return
	}
	x, errX := strconv.Atoi(ctx.Param("x"))
	y, errY := strconv.Atoi(ctx.Param("y"))
	if errX != nil || errY != nil {
		ctx.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверные координаты"})
		return
	}

	cell := vec.Vec2{X: x, Y: y}
	if !w.InBounds(cell) {
		fail(ctx, world.ErrOutOfBounds)
		return
	}

	view := CellView{
		Layer:     w.Layer(),
		Cell:      cell,
		Position:  w.ToWorld(cell, true),
		Blocked:   w.Terrain().IsBlocked(cell),
		Occupants: []OccupantView{},
	}
	for _, l := range w.GetOccupants(cell) {
		view.Occupants = append(view.Occupants, occupantView(l))
	}

	ctx.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Ячейка", Data: view})
}

func (c *Console) handleLoadWorld(ctx *gin.Context) {
	w, err := c.manager.LoadWorld(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Мир загружен",
		Data:    gin.H{"world": w.ID(), "layer": w.Layer(), "origin": w.Origin()},
	})
}

func (c *Console) handleSetActive(ctx *gin.Context) {
	layer, err := strconv.Atoi(ctx.Param("layer"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный номер слоя"})
		return
	}
	if err := c.manager.SetActiveWorld(ctx.Request.Context(), layer); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Активный слой изменён", Data: gin.H{"active": layer}})
}

func (c *Console) handleUnload(ctx *gin.Context) {
	layer, err := strconv.Atoi(ctx.Param("layer"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный номер слоя"})
		return
	}
	if err := c.manager.UnloadWorld(ctx.Request.Context(), layer); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Мир выгружен"})
}

func (c *Console) handleSpawn(ctx *gin.Context) {
	w, ok := c.layerParam(ctx)
	if !ok {
		return
	}

	var req SpawnRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса: " + err.Error()})
		return
	}

	rotation := grid.North
	if req.Rotation != "" {
		r, err := grid.ParseRotation(req.Rotation)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, GenericResponse{Message: err.Error()})
			return
		}
		rotation = r
	}

	anchor := vec.Vec2{X: req.X, Y: req.Y}
	var (
		link *world.NodeLink
		err  error
	)
	if req.Dropped {
		link, err = w.SpawnDropped(ctx.Request.Context(), req.ItemID, anchor, rotation)
	} else {
		category, perr := grid.ParseCategory(req.Category)
		if perr != nil {
			ctx.JSON(http.StatusBadRequest, GenericResponse{Message: perr.Error()})
			return
		}
		link, err = w.SpawnPlaced(ctx.Request.Context(), req.ItemID, anchor, rotation, category)
	}
	if err != nil {
		fail(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Предмет размещён", Data: occupantView(link)})
}

func (c *Console) handleRemove(ctx *gin.Context) {
	w, ok := c.layerParam(ctx)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(ctx.Param("node"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный ID узла"})
		return
	}

	link, ok := w.Link(world.NodeID(id))
	if !ok {
		fail(ctx, world.ErrNotPlaced)
		return
	}
	if err := w.Remove(ctx.Request.Context(), link); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Предмет удалён"})
}

func (c *Console) handleSave(ctx *gin.Context) {
	if err := c.manager.SaveAll(ctx.Request.Context()); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Миры сохранены", Data: gin.H{"worlds": len(c.manager.Layers())}})
}

func (c *Console) handleMoveObserver(ctx *gin.Context) {
	var req MoveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса: " + err.Error()})
		return
	}

	move, err := c.manager.MoveObserverToEntrance(ctx.Request.Context(), ctx.Param("id"), req.Layer, req.Entrance)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Наблюдатель перемещён", Data: move})
}
