package nlp

import (
	"context"

	"github.com/stretchr/testify/mock"

	"sales-nlu/internal/domain"
)

// MockExtractor is a mock implementation of Extractor using testify/mock.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractInitialProfile(ctx context.Context, message string) (domain.UserProfileSeed, error) {
	args := m.Called(ctx, message)
	return args.Get(0).(domain.UserProfileSeed), args.Error(1)
}

func (m *MockExtractor) RecommendPlan(ctx context.Context, profile domain.FullUserProfile) (domain.RecommendedPlan, error) {
	args := m.Called(ctx, profile)
	return args.Get(0).(domain.RecommendedPlan), args.Error(1)
}

func (m *MockExtractor) GenerateSalesPitch(ctx context.Context, profile domain.FullUserProfile, plan domain.Plan) (string, error) {
	args := m.Called(ctx, profile, plan)
	return args.String(0), args.Error(1)
}

func (m *MockExtractor) ClassifyIntent(ctx context.Context, message string) (domain.YesNoIntent, error) {
	args := m.Called(ctx, message)
	return args.Get(0).(domain.YesNoIntent), args.Error(1)
}

func (m *MockExtractor) ExtractSchedulingData(ctx context.Context, message string) (domain.SchedulingRequest, error) {
	args := m.Called(ctx, message)
	return args.Get(0).(domain.SchedulingRequest), args.Error(1)
}
