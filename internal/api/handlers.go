package api

import (
	"fmt"
	"net/http"

	"github.com/annel0/voxel-detach/internal/detached"
	"github.com/annel0/voxel-detach/internal/physics"
	"github.com/annel0/voxel-detach/internal/voxel"
	"github.com/gin-gonic/gin"
	"github.com/go-gl/mathgl/mgl64"
)

func (rs *RestServer) handleListMatrices(c *gin.Context) {
	rs.mu.Lock()
	views := make([]MatrixView, 0, rs.group.Len())
	for _, m := range rs.group.Matrices() {
		views = append(views, viewOf(m))
	}
	rs.mu.Unlock()

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Матрицы", Data: views})
}

func (rs *RestServer) handleCreateMatrix(c *gin.Context) {
	var req CreateMatrixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	density, err := req.Density.Func()
	if err != nil {
		badRequest(c, err)
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	id, err := rs.group.Create(toVec(req.Low), toVec(req.High), density)
	if err != nil {
		badRequest(c, err)
		return
	}
	m, err := rs.group.Matrix(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Матрица создана", Data: viewOf(m)})
}

func (rs *RestServer) handleGetMatrix(c *gin.Context) {
	id, ok := matrixID(c)
	if !ok {
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	m, err := rs.group.Matrix(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Матрица", Data: viewOf(m)})
}

func (rs *RestServer) handleDeleteMatrix(c *gin.Context) {
	id, ok := matrixID(c)
	if !ok {
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if err := rs.group.Remove(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: fmt.Sprintf("Матрица %d удалена", id)})
}

func (rs *RestServer) handleSetTransform(c *gin.Context) {
	id, ok := matrixID(c)
	if !ok {
		return
	}
	var req TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if err := rs.group.Move(id, req.Transform()); err != nil {
		respondError(c, err)
		return
	}
	m, err := rs.group.Matrix(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Преобразование обновлено", Data: viewOf(m)})
}

func (rs *RestServer) handleResolve(c *gin.Context) {
	var req PointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	p := mgl64.Vec3(req.Point)
	ri, found, err := rs.group.GetIndex(p)
	if err != nil {
		respondError(c, err)
		return
	}

	view := ResolveView{Found: found}
	if found {
		m, err := rs.group.Matrix(ri.Matrix)
		if err != nil {
			respondError(c, err)
			return
		}
		v, _ := m.Get(ri.Chunk, ri.Voxel)
		view.Matrix = ri.Matrix
		view.Chunk = string(ri.Chunk)
		view.Voxel = ri.Voxel
		view.Value = uint16(v)
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Разрешение точки", Data: view})
}

func (rs *RestServer) handlePlace(c *gin.Context) {
	var req PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	origin, dir := mgl64.Vec3(req.Origin), mgl64.Vec3(req.Direction)
	var validate detached.Validator
	if req.Player != nil {
		validate = rs.query.PlacementGuard(mgl64.Vec3(*req.Player), physics.PlayerCollider(rs.group.CubeSize()))
	}

	p, err := rs.group.PlaceBlockChecked(origin, dir, voxel.Value(req.Value), validate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Блок установлен",
		Data: PlacementView{
			Matrix: p.Matrix,
			Chunk:  string(p.Chunk),
			Voxel:  p.Voxel,
			Hit:    [3]float64(p.Hit),
			Point:  [3]float64(p.Point),
			Offset: p.Offset,
		},
	})
}

func (rs *RestServer) handleCollisions(c *gin.Context) {
	var req PointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	cs, err := rs.query.GetCollisions(mgl64.Vec3(req.Point), physics.PlayerCollider(rs.group.CubeSize()))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Коллизии игрока",
		Data: CollisionsView{
			Top:     len(cs.Top),
			Bottom:  len(cs.Bottom),
			Left:    len(cs.Left),
			Right:   len(cs.Right),
			Forward: len(cs.Forward),
			Back:    len(cs.Back),
			Middle:  len(cs.Middle),
			Freedom: physics.CalculateFreedom(cs),
		},
	})
}

func (rs *RestServer) snapshotsEnabled(c *gin.Context) bool {
	if rs.storage == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "хранилище снимков не настроено"})
		return false
	}
	return true
}

func (rs *RestServer) handleListSnapshots(c *gin.Context) {
	if !rs.snapshotsEnabled(c) {
		return
	}
	list, err := rs.storage.List()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Снимки", Data: list})
}

func (rs *RestServer) handleSaveSnapshot(c *gin.Context) {
	if !rs.snapshotsEnabled(c) {
		return
	}

	rs.mu.Lock()
	info, err := rs.storage.SaveGroup(c.Param("name"), rs.group)
	rs.mu.Unlock()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Снимок сохранён", Data: info})
}

func (rs *RestServer) handleRestoreSnapshot(c *gin.Context) {
	if !rs.snapshotsEnabled(c) {
		return
	}

	rs.mu.Lock()
	ids, err := rs.storage.RestoreGroup(c.Param("name"), rs.group)
	rs.mu.Unlock()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Снимок восстановлен", Data: gin.H{"matrices": ids}})
}

func (rs *RestServer) handleDeleteSnapshot(c *gin.Context) {
	if !rs.snapshotsEnabled(c) {
		return
	}
	if err := rs.storage.Delete(c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Снимок удалён"})
}
