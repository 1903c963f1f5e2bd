package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-broker/internal/broker"
	"chat-broker/internal/models"
	"chat-broker/internal/repositories"
)

type BrokerServiceMock struct {
	mock.Mock
}

func (m *BrokerServiceMock) Submit(ctx context.Context, msg models.Message) (models.Message, *broker.Rejection) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	var rej *broker.Rejection
	if val := args.Get(1); val != nil {
		rej = val.(*broker.Rejection)
	}
	return out, rej
}

func (m *BrokerServiceMock) BroadcastSystem(ctx context.Context, content, color string) (models.Message, *broker.Rejection) {
	args := m.Called(ctx, content, color)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	var rej *broker.Rejection
	if val := args.Get(1); val != nil {
		rej = val.(*broker.Rejection)
	}
	return out, rej
}

func (m *BrokerServiceMock) Settings() models.ChatSettings {
	args := m.Called()
	var settings models.ChatSettings
	if val := args.Get(0); val != nil {
		settings = val.(models.ChatSettings)
	}
	return settings
}

func (m *BrokerServiceMock) SetSettings(settings models.ChatSettings) {
	m.Called(settings)
}

func (m *BrokerServiceMock) Recent(count int) []models.Message {
	args := m.Called(count)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs
}

func (m *BrokerServiceMock) ClearHistory() {
	m.Called()
}

type TeamRepositoryMock struct {
	mock.Mock
}

func (m *TeamRepositoryMock) CreateTeam(ctx context.Context, name string) (models.Team, error) {
	args := m.Called(ctx, name)
	var team models.Team
	if val := args.Get(0); val != nil {
		team = val.(models.Team)
	}
	return team, args.Error(1)
}

func (m *TeamRepositoryMock) AssignMember(ctx context.Context, teamID int, participantID string) error {
	args := m.Called(ctx, teamID, participantID)
	return args.Error(0)
}

func (m *TeamRepositoryMock) RemoveMember(ctx context.Context, participantID string) error {
	args := m.Called(ctx, participantID)
	return args.Error(0)
}

func (m *TeamRepositoryMock) TeamOf(ctx context.Context, participantID string) (models.Team, error) {
	args := m.Called(ctx, participantID)
	var team models.Team
	if val := args.Get(0); val != nil {
		team = val.(models.Team)
	}
	return team, args.Error(1)
}

func (m *TeamRepositoryMock) SameTeam(ctx context.Context, a, b string) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

var _ repositories.TeamRepository = (*TeamRepositoryMock)(nil)
var _ broker.TeamLookup = (*TeamRepositoryMock)(nil)
