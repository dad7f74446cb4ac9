package contestix

import (
	"context"
	"os"
	"testing"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockNakamaModule mocks the slice of the Nakama runtime API the contest systems
// touch. The embedded interface satisfies the rest; calling an unmocked method
// panics, which is the failure mode tests want.
type MockNakamaModule struct {
	mock.Mock
	runtime.NakamaModule
	logger *zap.Logger
}

func (m *MockNakamaModule) Log(msg string, fields ...zap.Field) {
	if m.logger != nil {
		m.logger.Info(msg, fields...)
	}
}

// NewMockNakama returns a new instance of MockNakamaModule for use in tests
func NewMockNakama(t *testing.T) *MockNakamaModule {
	logger, _ := zap.NewDevelopment()
	return &MockNakamaModule{
		logger: logger,
	}
}

func (m *MockNakamaModule) ReadFile(relPath string) (*os.File, error) {
	args := m.Called(relPath)
	return args.Get(0).(*os.File), args.Error(1)
}

func (m *MockNakamaModule) StorageRead(ctx context.Context, objectIDs []*runtime.StorageRead) ([]*api.StorageObject, error) {
	args := m.Called(ctx, objectIDs)
	return args.Get(0).([]*api.StorageObject), args.Error(1)
}

func (m *MockNakamaModule) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	args := m.Called(ctx, writes)
	return args.Get(0).([]*api.StorageObjectAck), args.Error(1)
}

func (m *MockNakamaModule) StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error {
	args := m.Called(ctx, deletes)
	return args.Error(0)
}

func (m *MockNakamaModule) StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error) {
	args := m.Called(ctx, callerID, userID, collection, limit, cursor)
	return args.Get(0).([]*api.StorageObject), args.String(1), args.Error(2)
}

func (m *MockNakamaModule) AccountGetId(ctx context.Context, userID string) (*api.Account, error) {
	args := m.Called(ctx, userID)
	if acc := args.Get(0); acc != nil {
		return acc.(*api.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNakamaModule) UsersGetId(ctx context.Context, userIDs []string, facebookIDs []string) ([]*api.User, error) {
	args := m.Called(ctx, userIDs, facebookIDs)
	return args.Get(0).([]*api.User), args.Error(1)
}

func (m *MockNakamaModule) LeaderboardCreate(ctx context.Context, id string, authoritative bool, sortOrder, operator, resetSchedule string, metadata map[string]interface{}, enableRanks bool) error {
	args := m.Called(ctx, id, authoritative, sortOrder, operator, resetSchedule, metadata, enableRanks)
	return args.Error(0)
}

func (m *MockNakamaModule) LeaderboardRecordWrite(ctx context.Context, id, ownerID, username string, score, subscore int64, metadata map[string]interface{}, overrideOperator *int) (*api.LeaderboardRecord, error) {
	args := m.Called(ctx, id, ownerID, username, score, subscore, metadata, overrideOperator)
	if record := args.Get(0); record != nil {
		return record.(*api.LeaderboardRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNakamaModule) LeaderboardRecordsList(ctx context.Context, id string, ownerIDs []string, limit int, cursor string, expiry int64) ([]*api.LeaderboardRecord, []*api.LeaderboardRecord, string, string, error) {
	args := m.Called(ctx, id, ownerIDs, limit, cursor, expiry)
	return args.Get(0).([]*api.LeaderboardRecord), args.Get(1).([]*api.LeaderboardRecord), args.String(2), args.String(3), args.Error(4)
}

func (m *MockNakamaModule) NotificationsSend(ctx context.Context, notifications []*runtime.NotificationSend) error {
	args := m.Called(ctx, notifications)
	return args.Error(0)
}
