package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"room-ffe-api/internal/dto"
	"room-ffe-api/internal/response"
	"room-ffe-api/internal/service"
)

type FFEHandler struct {
	instanceService service.FFEInstanceService
	itemService     service.FFEItemService
}

func NewFFEHandler(instanceService service.FFEInstanceService, itemService service.FFEItemService) *FFEHandler {
	return &FFEHandler{
		instanceService: instanceService,
		itemService:     itemService,
	}
}

// MaterializeInstance godoc
// @Summary      Room FFE 인스턴스 생성
// @Description  템플릿(또는 "default")으로 Room의 FFE 인스턴스를 생성합니다. mode에 따라 기존 인스턴스가 있으면 409 또는 기존 인스턴스를 반환합니다
// @Tags         ffe
// @Accept       json
// @Produce      json
// @Param        roomId path string true "Room ID (UUID)"
// @Param        request body dto.MaterializeFFERequest true "인스턴스 생성 요청"
// @Success      201 {object} response.SuccessResponse{data=dto.MaterializeFFEResponse} "인스턴스 생성 성공"
// @Success      200 {object} response.SuccessResponse{data=dto.MaterializeFFEResponse} "기존 인스턴스 반환"
// @Failure      400 {object} response.ErrorResponse "잘못된 요청"
// @Failure      404 {object} response.ErrorResponse "Room 또는 템플릿을 찾을 수 없음"
// @Failure      409 {object} response.ErrorResponse "인스턴스가 이미 존재함"
// @Failure      500 {object} response.ErrorResponse "서버 에러"
// @Router       /rooms/{roomId}/ffe-instance [post]
func (h *FFEHandler) MaterializeInstance(c *gin.Context) {
	roomID, ok := parseUUIDParam(c, "roomId", "Invalid room ID")
	if !ok {
		return
	}

	var req dto.MaterializeFFERequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	result, err := h.instanceService.Materialize(c.Request.Context(), roomID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.SendSuccess(c, status, result)
}

// GetInstance godoc
// @Summary      Room FFE 인스턴스 조회
// @Description  섹션, 항목, 하위 항목과 계산된 표시 여부를 포함한 FFE 트리를 조회합니다
// @Tags         ffe
// @Produce      json
// @Param        roomId path string true "Room ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=dto.FFEInstanceResponse} "조회 성공"
// @Failure      400 {object} response.ErrorResponse "잘못된 Room ID"
// @Failure      404 {object} response.ErrorResponse "인스턴스를 찾을 수 없음"
// @Failure      500 {object} response.ErrorResponse "서버 에러"
// @Router       /rooms/{roomId}/ffe-instance [get]
func (h *FFEHandler) GetInstance(c *gin.Context) {
	roomID, ok := parseUUIDParam(c, "roomId", "Invalid room ID")
	if !ok {
		return
	}

	instance, err := h.instanceService.GetInstance(c.Request.Context(), roomID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, instance)
}

// UpdateItem godoc
// @Summary      FFE 항목 수정
// @Description  상태, 메모, 선택 옵션, 수량을 한 번에 수정합니다. 맞춤 설정된 항목이 삭제되는 수량 감소는 confirmDataLoss가 필요합니다
// @Tags         ffe
// @Accept       json
// @Produce      json
// @Param        itemId path string true "Item ID (UUID)"
// @Param        request body dto.UpdateFFEItemRequest true "항목 수정 요청"
// @Success      200 {object} response.SuccessResponse{data=dto.UpdateFFEItemResponse} "수정 성공"
// @Failure      400 {object} response.ErrorResponse "잘못된 요청"
// @Failure      404 {object} response.ErrorResponse "항목을 찾을 수 없음"
// @Failure      409 {object} response.ErrorResponse "버전 충돌 또는 데이터 손실 확인 필요"
// @Failure      500 {object} response.ErrorResponse "서버 에러"
// @Router       /ffe-items/{itemId} [patch]
func (h *FFEHandler) UpdateItem(c *gin.Context) {
	itemID, ok := parseUUIDParam(c, "itemId", "Invalid item ID")
	if !ok {
		return
	}

	var req dto.UpdateFFEItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	result, err := h.itemService.UpdateItem(c.Request.Context(), itemID, &req)
	if response.IsCode(err, response.ErrCodeWriteConflict) {
		// Lost a concurrent write race; the retry re-reads the item
		result, err = h.itemService.UpdateItem(c.Request.Context(), itemID, &req)
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, result)
}
