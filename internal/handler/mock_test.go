package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"room-ffe-api/internal/domain"
	"room-ffe-api/internal/dto"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// MockFFEInstanceService is a mock implementation of FFEInstanceService
type MockFFEInstanceService struct {
	MaterializeFunc func(ctx context.Context, roomID uuid.UUID, req *dto.MaterializeFFERequest) (*dto.MaterializeFFEResponse, error)
	GetInstanceFunc func(ctx context.Context, roomID uuid.UUID) (*dto.FFEInstanceResponse, error)
}

func (m *MockFFEInstanceService) Materialize(ctx context.Context, roomID uuid.UUID, req *dto.MaterializeFFERequest) (*dto.MaterializeFFEResponse, error) {
	if m.MaterializeFunc != nil {
		return m.MaterializeFunc(ctx, roomID, req)
	}
	return &dto.MaterializeFFEResponse{}, nil
}

func (m *MockFFEInstanceService) GetInstance(ctx context.Context, roomID uuid.UUID) (*dto.FFEInstanceResponse, error) {
	if m.GetInstanceFunc != nil {
		return m.GetInstanceFunc(ctx, roomID)
	}
	return &dto.FFEInstanceResponse{RoomID: roomID}, nil
}

// MockFFEItemService is a mock implementation of FFEItemService
type MockFFEItemService struct {
	UpdateItemFunc func(ctx context.Context, itemID uuid.UUID, req *dto.UpdateFFEItemRequest) (*dto.UpdateFFEItemResponse, error)
	calls          int
}

func (m *MockFFEItemService) UpdateItem(ctx context.Context, itemID uuid.UUID, req *dto.UpdateFFEItemRequest) (*dto.UpdateFFEItemResponse, error) {
	m.calls++
	if m.UpdateItemFunc != nil {
		return m.UpdateItemFunc(ctx, itemID, req)
	}
	return &dto.UpdateFFEItemResponse{Item: dto.FFEItemResponse{ItemID: itemID}}, nil
}

func (m *MockFFEItemService) SetStatus(ctx context.Context, itemID uuid.UUID, status string) (*dto.UpdateFFEItemResponse, error) {
	return m.UpdateItem(ctx, itemID, &dto.UpdateFFEItemRequest{Status: &status})
}

func (m *MockFFEItemService) SetNote(ctx context.Context, itemID uuid.UUID, note string) (*dto.UpdateFFEItemResponse, error) {
	return m.UpdateItem(ctx, itemID, &dto.UpdateFFEItemRequest{Note: &note})
}

func (m *MockFFEItemService) SetSelectedOption(ctx context.Context, itemID uuid.UUID, option string) (*dto.UpdateFFEItemResponse, error) {
	return m.UpdateItem(ctx, itemID, &dto.UpdateFFEItemRequest{SelectedOption: &option})
}

func (m *MockFFEItemService) SetQuantity(ctx context.Context, itemID uuid.UUID, count int, confirmDataLoss bool) (*dto.UpdateFFEItemResponse, error) {
	return m.UpdateItem(ctx, itemID, &dto.UpdateFFEItemRequest{Quantity: &count, ConfirmDataLoss: confirmDataLoss})
}

// MockStageService is a mock implementation of StageService
type MockStageService struct {
	CreateRoomWithStagesFunc func(ctx context.Context, req *dto.CreateRoomRequest) (*dto.RoomResponse, error)
	ListRoomStagesFunc       func(ctx context.Context, roomID uuid.UUID) ([]dto.StageResponse, error)
	UpdateStageFunc          func(ctx context.Context, stageID uuid.UUID, req *dto.UpdateStageRequest) (*dto.StageResponse, error)
}

func (m *MockStageService) CreateRoomWithStages(ctx context.Context, req *dto.CreateRoomRequest) (*dto.RoomResponse, error) {
	if m.CreateRoomWithStagesFunc != nil {
		return m.CreateRoomWithStagesFunc(ctx, req)
	}
	return &dto.RoomResponse{Name: req.Name}, nil
}

func (m *MockStageService) ListRoomStages(ctx context.Context, roomID uuid.UUID) ([]dto.StageResponse, error) {
	if m.ListRoomStagesFunc != nil {
		return m.ListRoomStagesFunc(ctx, roomID)
	}
	return []dto.StageResponse{}, nil
}

func (m *MockStageService) UpdateStage(ctx context.Context, stageID uuid.UUID, req *dto.UpdateStageRequest) (*dto.StageResponse, error) {
	if m.UpdateStageFunc != nil {
		return m.UpdateStageFunc(ctx, stageID, req)
	}
	return &dto.StageResponse{StageID: stageID}, nil
}

func (m *MockStageService) UpdateStageStatus(ctx context.Context, stageID uuid.UUID, status domain.StageStatus) (*dto.StageResponse, error) {
	value := string(status)
	return m.UpdateStage(ctx, stageID, &dto.UpdateStageRequest{Status: &value})
}

func (m *MockStageService) AssignStage(ctx context.Context, stageID uuid.UUID, assigneeID *uuid.UUID) (*dto.StageResponse, error) {
	value := ""
	if assigneeID != nil {
		value = assigneeID.String()
	}
	return m.UpdateStage(ctx, stageID, &dto.UpdateStageRequest{AssignedToID: &value})
}

// MockStageCleanupService is a mock implementation of StageCleanupService
type MockStageCleanupService struct {
	FindDuplicatesFunc  func(ctx context.Context, orgID *uuid.UUID) ([]dto.DuplicateStageGroupResponse, error)
	MergeDuplicatesFunc func(ctx context.Context, roomID uuid.UUID, stageType domain.StageType, stageIDs []uuid.UUID) (*dto.StageMergeResult, error)
	RunCleanupFunc      func(ctx context.Context, req *dto.StageCleanupRequest) (*dto.StageCleanupReport, error)
}

func (m *MockStageCleanupService) FindDuplicates(ctx context.Context, orgID *uuid.UUID) ([]dto.DuplicateStageGroupResponse, error) {
	if m.FindDuplicatesFunc != nil {
		return m.FindDuplicatesFunc(ctx, orgID)
	}
	return []dto.DuplicateStageGroupResponse{}, nil
}

func (m *MockStageCleanupService) MergeDuplicates(ctx context.Context, roomID uuid.UUID, stageType domain.StageType, stageIDs []uuid.UUID) (*dto.StageMergeResult, error) {
	if m.MergeDuplicatesFunc != nil {
		return m.MergeDuplicatesFunc(ctx, roomID, stageType, stageIDs)
	}
	return &dto.StageMergeResult{RoomID: roomID}, nil
}

func (m *MockStageCleanupService) RunCleanup(ctx context.Context, req *dto.StageCleanupRequest) (*dto.StageCleanupReport, error) {
	if m.RunCleanupFunc != nil {
		return m.RunCleanupFunc(ctx, req)
	}
	return &dto.StageCleanupReport{DryRun: req.DryRun}, nil
}

// performJSON sends body (marshalled unless it is a string) and returns the recorder
func performJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type errorEnvelope struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details string                 `json:"details"`
		Meta    map[string]interface{} `json:"meta"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, target))
}
