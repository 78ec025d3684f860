package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/verdantlab/grove/pkg/grove"
)

// Run boots the assignment HTTP API and blocks until ctx is canceled or the
// listener fails.
func Run(ctx context.Context, cfg Config, service *grove.Service, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := &httpHandler{
		logger:  logger,
		service: service,
		cfg:     cfg,
	}
	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("assignment api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/lots", handler.handleListLots)
	api.PUT("/lots/:lot_id/operator", handler.handleAssignOperator)
	api.PUT("/trees/:tree_id/lot", handler.handleReassignTree)

	return router
}

type httpHandler struct {
	logger  *zap.Logger
	service *grove.Service
	cfg     Config
}

func (handler *httpHandler) handleListLots(ctx *gin.Context) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	lots, err := handler.service.ListLots(requestCtx)
	if err != nil {
		handler.logger.Error("list lots failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("storage_error", "lot listing unavailable"))
		return
	}
	payload := make([]lotPayload, 0, len(lots))
	for _, lot := range lots {
		payload = append(payload, lotToPayload(lot.Lot, lot.TreeCount))
	}
	ctx.JSON(http.StatusOK, gin.H{"lots": payload})
}

func (handler *httpHandler) handleAssignOperator(ctx *gin.Context) {
	lotID, err := grove.NewLotID(ctx.Param("lot_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_lot_id", "lot id is required"))
		return
	}
	var request assignOperatorRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	operatorID, err := grove.NewOperatorID(request.OperatorID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_operator_id", "operator_id is required"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	lot, err := handler.service.AssignOperator(requestCtx, lotID, operatorID)
	if err != nil {
		handler.respondOperationError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"lot": lotToPayload(lot, lot.PlantedCount)})
}

func (handler *httpHandler) handleReassignTree(ctx *gin.Context) {
	treeID, err := grove.NewTreeID(ctx.Param("tree_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_tree_id", "tree id is required"))
		return
	}
	var request reassignTreeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	targetLotID, err := grove.NewLotID(request.LotID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_lot_id", "lot_id is required"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	planted, err := handler.service.ReassignTree(requestCtx, treeID, targetLotID)
	if err != nil {
		handler.respondOperationError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"tree": treePayload{
			TreeID: planted.Tree.ID.String(),
			LotID:  planted.Lot.ID.String(),
			Status: planted.Tree.Status,
		},
		"lot": lotToPayload(planted.Lot, planted.Lot.PlantedCount),
	})
}

func (handler *httpHandler) respondOperationError(ctx *gin.Context, err error) {
	var capacityError grove.CapacityExceededError
	switch {
	case errors.Is(err, grove.ErrLotNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("lot_not_found", "lot does not exist"))
	case errors.Is(err, grove.ErrTreeNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("tree_not_found", "tree does not exist"))
	case errors.As(err, &capacityError):
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":     "capacity_exceeded",
				"message":  capacityError.Error(),
				"lot_name": capacityError.LotName,
				"capacity": capacityError.Capacity,
			},
		})
	default:
		handler.logger.Error("assignment operation failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("storage_error", "operation failed"))
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

type assignOperatorRequest struct {
	OperatorID string `json:"operator_id"`
}

type reassignTreeRequest struct {
	LotID string `json:"lot_id"`
}

type lotPayload struct {
	LotID        string  `json:"lot_id"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Capacity     int64   `json:"capacity"`
	PlantedCount int64   `json:"planted_count"`
	TreeCount    int64   `json:"tree_count"`
	OperatorID   *string `json:"operator_id,omitempty"`
}

type treePayload struct {
	TreeID string `json:"tree_id"`
	LotID  string `json:"lot_id"`
	Status string `json:"status"`
}

func lotToPayload(lot grove.Lot, treeCount int64) lotPayload {
	payload := lotPayload{
		LotID:        lot.ID.String(),
		Code:         lot.Code,
		Name:         lot.Name,
		Capacity:     lot.Capacity,
		PlantedCount: lot.PlantedCount,
		TreeCount:    treeCount,
	}
	if lot.OperatorID != nil {
		operator := lot.OperatorID.String()
		payload.OperatorID = &operator
	}
	return payload
}
