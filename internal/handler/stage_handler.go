package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"room-ffe-api/internal/domain"
	"room-ffe-api/internal/dto"
	"room-ffe-api/internal/response"
	"room-ffe-api/internal/service"
)

type StageHandler struct {
	stageService   service.StageService
	cleanupService service.StageCleanupService
}

func NewStageHandler(stageService service.StageService, cleanupService service.StageCleanupService) *StageHandler {
	return &StageHandler{
		stageService:   stageService,
		cleanupService: cleanupService,
	}
}

// CreateRoom godoc
// @Summary      Room 생성
// @Description  Room을 생성하고 워크플로우 단계별로 Stage를 하나씩 생성합니다
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateRoomRequest true "Room 생성 요청"
// @Success      201 {object} response.SuccessResponse{data=dto.RoomResponse} "Room 생성 성공"
// @Failure      400 {object} response.ErrorResponse "잘못된 요청"
// @Failure      500 {object} response.ErrorResponse "서버 에러"
// @Router       /rooms [post]
func (h *StageHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	room, err := h.stageService.CreateRoomWithStages(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusCreated, room)
}

// ListRoomStages godoc
// @Summary      Room의 Stage 목록 조회
// @Tags         stages
// @Produce      json
// @Param        roomId path string true "Room ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=[]dto.StageResponse} "조회 성공"
// @Failure      400 {object} response.ErrorResponse "잘못된 Room ID"
// @Failure      404 {object} response.ErrorResponse "Room을 찾을 수 없음"
// @Failure      500 {object} response.ErrorResponse "서버 에러"
// @Router       /rooms/{roomId}/stages [get]
func (h *StageHandler) ListRoomStages(c *gin.Context) {
	roomID, ok := parseUUIDParam(c, "roomId", "Invalid room ID")
	if !ok {
		return
	}

	stages, err := h.stageService.ListRoomStages(c.Request.Context(), roomID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, stages)
}

// UpdateStage godoc
// @Summary      Stage 상태/담당자 수정
// @Description  Stage 상태를 변경하거나 담당자를 지정합니다. assignedToId를 빈 문자열로 보내면 담당자가 해제됩니다
// @Tags         stages
// @Accept       json
// @Produce      json
// @Param        stageId path string true "Stage ID (UUID)"
// @Param        request body dto.UpdateStageRequest true "Stage 수정 요청"
// @Success      200 {object} response.SuccessResponse{data=dto.StageResponse} "수정 성공"
// @Failure      400 {object} response.ErrorResponse "잘못된 요청"
// @Failure      404 {object} response.ErrorResponse "Stage를 찾을 수 없음"
// @Failure      500 {object} response.ErrorResponse "서버 에러"
// @Router       /stages/{stageId} [patch]
func (h *StageHandler) UpdateStage(c *gin.Context) {
	stageID, ok := parseUUIDParam(c, "stageId", "Invalid stage ID")
	if !ok {
		return
	}

	var req dto.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	stage, err := h.stageService.UpdateStage(c.Request.Context(), stageID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, stage)
}

// FindDuplicateStages godoc
// @Summary      중복 Stage 조회
// @Description  같은 Room에 같은 유형(DESIGN은 DESIGN_CONCEPT로 취급)의 Stage가 둘 이상인 그룹을 조회합니다
// @Tags         admin
// @Produce      json
// @Param        orgId query string false "Organization ID (UUID)"
// @Success      200 {object} response.SuccessResponse{data=[]dto.DuplicateStageGroupResponse} "조회 성공"
// @Failure      400 {object} response.ErrorResponse "잘못된 Organization ID"
// @Failure      500 {object} response.ErrorResponse "서버 에러"
// @Router       /admin/stages/duplicates [get]
func (h *StageHandler) FindDuplicateStages(c *gin.Context) {
	var orgID *uuid.UUID
	if raw := c.Query("orgId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid organization ID")
			return
		}
		orgID = &id
	}

	groups, err := h.cleanupService.FindDuplicates(c.Request.Context(), orgID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, groups)
}

// MergeDuplicateStages godoc
// @Summary      중복 Stage 병합
// @Description  한 Room의 지정한 Stage들을 하나로 병합합니다. 진행 중인 Stage가 여럿이면 409를 반환합니다
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request body dto.MergeStagesRequest true "병합 요청"
// @Success      200 {object} response.SuccessResponse{data=dto.StageMergeResult} "병합 성공"
// @Failure      400 {object} response.ErrorResponse "잘못된 요청"
// @Failure      404 {object} response.ErrorResponse "병합할 Stage가 없음"
// @Failure      409 {object} response.ErrorResponse "수동 검토 필요"
// @Failure      500 {object} response.ErrorResponse "서버 에러"
// @Router       /admin/stages/merge [post]
func (h *StageHandler) MergeDuplicateStages(c *gin.Context) {
	var req dto.MergeStagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	result, err := h.cleanupService.MergeDuplicates(c.Request.Context(), req.RoomID, domain.StageType(req.Type), req.StageIDs)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, result)
}

// RunStageCleanup godoc
// @Summary      중복 Stage 정리 실행
// @Description  모든(또는 한 조직의) 중복 Stage 그룹을 병합하고 결과 보고서를 반환합니다
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request body dto.StageCleanupRequest false "정리 범위"
// @Success      200 {object} response.SuccessResponse{data=dto.StageCleanupReport} "정리 완료"
// @Failure      400 {object} response.ErrorResponse "잘못된 요청"
// @Failure      500 {object} response.ErrorResponse "서버 에러"
// @Router       /admin/stages/cleanup [post]
func (h *StageHandler) RunStageCleanup(c *gin.Context) {
	var req dto.StageCleanupRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
			return
		}
	}

	report, err := h.cleanupService.RunCleanup(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, report)
}
